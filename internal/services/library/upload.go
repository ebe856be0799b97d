package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/notifications"
	"metareview/internal/infra/storage"
	"metareview/internal/observability"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/bibimport"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const errDuplicateKey = "citation key already exists in this project"

// Upload stores a .bib, .pdf, .docx or .txt file and imports its entries as
// WAITING articles. Entries that cannot be imported are listed on the
// returned UploadedFile; they never fail the upload as a whole.
func (s *Service) Upload(ctx context.Context, actorID, projectID uint, fileName string, data []byte) (*articles.UploadedFile, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapUpload); err != nil {
		return nil, err
	}
	fileName = strings.TrimSpace(fileName)
	format, err := bibimport.DetectFormat(fileName)
	if err != nil {
		return nil, apierr.Validation("%s", err)
	}
	if len(data) == 0 {
		return nil, apierr.Validation("the uploaded file is empty")
	}

	now := s.Now()
	key, err := s.store.Put(ctx, storage.ObjectKey(projectID, now.UnixNano(), fileName), data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	kind := articles.UploadDocument
	if format == bibimport.FormatBibTeX {
		kind = articles.UploadBibTeX
	}
	up := &articles.UploadedFile{
		ProjectID:    projectID,
		UploadedByID: actorID,
		FileName:     fileName,
		StoragePath:  key,
		Kind:         kind,
	}
	importErrs := []articles.ImportError{}

	var (
		entries []bibimport.Entry
		doc     *bibimport.Document
	)
	if format == bibimport.FormatBibTeX {
		res, err := bibimport.ParseBibTeX(data)
		if err != nil {
			importErrs = append(importErrs, articles.ImportError{Entry: fileName, Error: err.Error()})
		} else {
			entries = res.Entries
			for _, f := range res.Failures {
				importErrs = append(importErrs, articles.ImportError{Entry: f.Entry, Error: f.Reason})
			}
			if len(res.Entries) == 0 && len(res.Failures) == 0 {
				importErrs = append(importErrs, articles.ImportError{Entry: fileName, Error: "no BibTeX entries found"})
			}
		}
	} else {
		text, err := bibimport.ExtractText(format, data)
		if err != nil {
			importErrs = append(importErrs, articles.ImportError{Entry: fileName, Error: err.Error()})
		} else {
			d := bibimport.GuessMetadata(text, fileName, now)
			doc = &d
		}
	}

	var created []articles.Article
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(up).Error; err != nil {
			return err
		}
		used, err := existingKeys(tx, projectID)
		if err != nil {
			return err
		}
		if doc != nil {
			e := doc.Entry(uniqueKey(doc.CitationKey(), used))
			entries = []bibimport.Entry{e}
		}
		for _, e := range entries {
			if _, dup := used[e.Key]; dup {
				importErrs = append(importErrs, articles.ImportError{Entry: e.Key, Error: errDuplicateKey})
				continue
			}
			a, ok, err := s.createArticle(tx, actorID, projectID, e, fileName, &up.ID)
			if err != nil {
				return fmt.Errorf("import %s: %w", e.Key, err)
			}
			if !ok {
				importErrs = append(importErrs, articles.ImportError{Entry: e.Key, Error: errDuplicateKey})
				continue
			}
			if doc != nil {
				if err := linkOriginal(tx, a); err != nil {
					return err
				}
			}
			used[e.Key] = struct{}{}
			created = append(created, *a)
		}
		up.ProcessedCount = len(created)
		up.Errors = importErrs
		return tx.Model(up).Select("processed_count", "errors").Updates(up).Error
	})
	if err != nil {
		// The record never committed, so the stored file has no owner.
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn("orphaned upload not removed", "key", key, "error", derr)
		}
		return nil, err
	}

	observability.ArticlesImported.WithLabelValues(string(kind)).Add(float64(len(created)))
	observability.ImportErrors.WithLabelValues(string(kind)).Add(float64(len(importErrs)))
	s.refresh(ctx, projectID)
	s.log.Info("file imported", "project_id", projectID, "file", fileName, "created", len(created), "skipped", len(importErrs))

	if leads, err := guard.Leads(ctx, s.db, projectID); err == nil {
		s.pub.Publish(notify.Event{
			Kind:       notifications.KindFileUploaded,
			Recipients: notify.Unique(leads, actorID),
			Title:      "New file uploaded",
			Message:    fmt.Sprintf("%s: %d article(s) imported, %d skipped.", fileName, len(created), len(importErrs)),
			Link:       fmt.Sprintf("/projects/%d/uploads/%d", projectID, up.ID),
			ProjectID:  &projectID,
		})
	}
	return up, nil
}

// createArticle inserts one WAITING article with its CREATED change row.
// ok is false when the (project, key) pair already exists.
func (s *Service) createArticle(tx *gorm.DB, actorID, projectID uint, e bibimport.Entry, source string, uploadID *uint) (*articles.Article, bool, error) {
	md, err := json.Marshal(e.Metadata())
	if err != nil {
		return nil, false, err
	}
	a := &articles.Article{
		ProjectID:    projectID,
		UploadedByID: actorID,
		CitationKey:  e.Key,
		Title:        e.Title,
		DOI:          e.DOI,
		BibTeX:       e.BibTeX,
		Metadata:     datatypes.JSON(md),
		SourceFile:   source,
		UploadID:     uploadID,
		Status:       articles.StatusWaiting,
	}
	if a.Title == "" {
		a.Title = e.Key
	}
	r := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if r.Error != nil {
		return nil, false, r.Error
	}
	if r.RowsAffected == 0 {
		return nil, false, nil
	}
	entry := articles.NewChange(a, actorID, articles.ChangeCreated, "", "", a.CitationKey)
	if err := tx.Create(&entry).Error; err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// linkOriginal points a document-derived article at an earlier article of the
// same project sharing its DOI or title.
func linkOriginal(tx *gorm.DB, a *articles.Article) error {
	q := tx.Model(&articles.Article{}).Where("project_id = ? AND id <> ?", a.ProjectID, a.ID)
	if a.DOI != "" {
		q = q.Where("(doi = ? OR LOWER(title) = ?)", a.DOI, strings.ToLower(a.Title))
	} else {
		q = q.Where("LOWER(title) = ?", strings.ToLower(a.Title))
	}
	var orig articles.Article
	err := q.Order("id").First(&orig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if orig.OriginalID != nil {
		orig.ID = *orig.OriginalID
	}
	a.OriginalID = &orig.ID
	return tx.Model(a).Update("original_id", orig.ID).Error
}
