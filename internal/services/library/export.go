package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metareview/internal/domain/articles"
	"metareview/internal/infra/storage"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/bibimport"
	"metareview/internal/services/guard"

	"gorm.io/gorm"
)

// Export is a downloadable file.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportArticle returns an article's BibTeX and records the download.
func (s *Service) ExportArticle(ctx context.Context, actorID, articleID uint) (*Export, error) {
	a, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if _, err := guard.Membership(ctx, s.db, actorID, a.ProjectID); err != nil {
		return nil, err
	}
	entry := articles.NewChange(a, actorID, articles.ChangeDownload, "bibtex", "", "")
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &Export{
		FileName:    a.CitationKey + ".bib",
		ContentType: "application/x-bibtex",
		Data:        []byte(bibtexOf(a) + "\n"),
	}, nil
}

// ExportUpload bundles the BibTeX of every article still present from one upload.
func (s *Service) ExportUpload(ctx context.Context, actorID, projectID, uploadID uint) (*Export, error) {
	up, err := s.GetUpload(ctx, actorID, projectID, uploadID)
	if err != nil {
		return nil, err
	}
	var list []articles.Article
	if err := s.db.WithContext(ctx).Where("upload_id = ?", up.ID).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apierr.NotFound("no articles left from this upload")
	}
	parts := make([]string, 0, len(list))
	logs := make([]articles.ChangeLog, 0, len(list))
	for i := range list {
		parts = append(parts, bibtexOf(&list[i]))
		logs = append(logs, articles.NewChange(&list[i], actorID, articles.ChangeDownload, "bibtex", "", fmt.Sprintf("upload:%d", up.ID)))
	}
	if err := s.db.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(up.FileName, ".bib")
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return &Export{
		FileName:    name + ".bib",
		ContentType: "application/x-bibtex",
		Data:        []byte(strings.Join(parts, "\n\n") + "\n"),
	}, nil
}

// SourceFile returns the originally uploaded bytes.
func (s *Service) SourceFile(ctx context.Context, actorID, projectID, uploadID uint) (*Export, error) {
	up, err := s.GetUpload(ctx, actorID, projectID, uploadID)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, up.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierr.NotFound("the stored file is no longer available")
	}
	if err != nil {
		return nil, err
	}
	return &Export{FileName: up.FileName, ContentType: "application/octet-stream", Data: data}, nil
}

func (s *Service) ListUploads(ctx context.Context, actorID, projectID uint) ([]articles.UploadedFile, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	var out []articles.UploadedFile
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *Service) GetUpload(ctx context.Context, actorID, projectID, uploadID uint) (*articles.UploadedFile, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	var up articles.UploadedFile
	err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", uploadID, projectID).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload not found")
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

func bibtexOf(a *articles.Article) string {
	if strings.TrimSpace(a.BibTeX) != "" {
		return strings.TrimSpace(a.BibTeX)
	}
	return bibimport.NewEntry("article", a.CitationKey, map[string]string{"title": a.Title, "doi": a.DOI}).BibTeX
}
