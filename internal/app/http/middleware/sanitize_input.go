package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// Secrets are compared byte for byte and must reach the handler untouched.
var rawKeys = map[string]bool{
	"password":         true,
	"old_password":     true,
	"new_password":     true,
	"token":            true,
	"invitation_token": true,
}

// SanitizeInput strips markup from every string in a JSON body.
func SanitizeInput() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if !strings.HasPrefix(c.ContentType(), "application/json") || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid body", "code": "validation"})
			return
		}
		var body map[string]interface{}
		if err := json.Unmarshal(buf, &body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Malformed JSON", "code": "validation"})
			return
		}
		for k, v := range body {
			if rawKeys[k] {
				continue
			}
			body[k] = clean(policy, v)
		}

		newBody, _ := json.Marshal(body)
		c.Request.Body = io.NopCloser(bytes.NewBuffer(newBody))
		c.Request.ContentLength = int64(len(newBody))
		c.Next()
	}
}

func clean(p *bluemonday.Policy, v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(p.Sanitize(t))
	case []interface{}:
		for i := range t {
			t[i] = clean(p, t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = clean(p, t[k])
		}
		return t
	}
	return v
}
