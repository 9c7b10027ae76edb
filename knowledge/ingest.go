package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	rardecode "github.com/nwaples/rardecode/v2"
)

const (
	maxUploadBytes       int64 = 20 * 1024 * 1024
	maxArchiveBytes      int64 = 100 * 1024 * 1024
	maxArchiveEntryBytes int64 = 5 * 1024 * 1024
)

// IngestUpload turns one uploaded text file into a document. The raw payload
// is retained in object storage when it is configured.
func (s *Service) IngestUpload(ctx context.Context, userID uint64, fileHeader *multipart.FileHeader, domain string) (*DocumentRecord, error) {
	if fileHeader == nil {
		return nil, errors.New("knowledge: upload file not provided")
	}
	if fileHeader.Size > 0 && fileHeader.Size > maxUploadBytes {
		return nil, fmt.Errorf("knowledge: upload size exceeds %d bytes", maxUploadBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("knowledge: open upload: %w", err)
	}
	defer src.Close()

	var buffer bytes.Buffer
	written, err := io.Copy(&buffer, io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("knowledge: read upload: %w", err)
	}
	if written > maxUploadBytes {
		return nil, fmt.Errorf("knowledge: upload size exceeds %d bytes", maxUploadBytes)
	}

	content := strings.TrimSpace(buffer.String())
	if content == "" {
		return nil, errors.New("knowledge: uploaded file is empty")
	}
	if !utf8.ValidString(content) {
		return nil, errors.New("knowledge: uploaded file is not valid text")
	}

	record, err := s.CreateDocument(ctx, userID, DocumentInput{
		Title:   documentTitleFromFilename(fileHeader.Filename),
		Content: content,
		Domain:  domain,
	})
	if err != nil {
		return nil, err
	}

	if s.objects != nil {
		objectKey, err := s.objects.Upload(ctx, fileHeader, fmt.Sprintf("user-%d", userID))
		if err != nil {
			log.Printf("knowledge: retain raw payload for document %d failed: %v", record.ID, err)
		} else if err := s.db.WithContext(ctx).Model(&Document{}).
			Where("id = ?", record.ID).
			Update("object_key", objectKey).Error; err != nil {
			log.Printf("knowledge: save object key for document %d failed: %v", record.ID, err)
		}
	}

	return record, nil
}

// IngestArchive unpacks a .rar bundle and ingests every text entry as its own
// document. Entries that fail are skipped so one bad file does not sink the
// whole bundle.
func (s *Service) IngestArchive(ctx context.Context, userID uint64, fileHeader *multipart.FileHeader, domain string) ([]DocumentRecord, error) {
	if fileHeader == nil {
		return nil, errors.New("knowledge: archive file not provided")
	}
	if fileHeader.Size > 0 && fileHeader.Size > maxArchiveBytes {
		return nil, fmt.Errorf("knowledge: archive size exceeds %d bytes", maxArchiveBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("knowledge: open archive: %w", err)
	}
	defer src.Close()

	tmpFile, err := os.CreateTemp("", "knowledge-archive-*")
	if err != nil {
		return nil, fmt.Errorf("knowledge: create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(src, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("knowledge: copy archive: %w", err)
	}
	if written > maxArchiveBytes {
		return nil, fmt.Errorf("knowledge: archive size exceeds %d bytes", maxArchiveBytes)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("knowledge: rewind temp file: %w", err)
	}

	rr, err := rardecode.NewReader(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("knowledge: parse rar archive: %w", err)
	}

	var records []DocumentRecord
	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("knowledge: read rar entry: %w", err)
		}
		if header.IsDir {
			continue
		}

		name := sanitizeArchiveEntry(header.Name)
		if name == "" || !isTextEntry(name) {
			if _, err := io.Copy(io.Discard, rr); err != nil {
				return records, fmt.Errorf("knowledge: discard rar entry: %w", err)
			}
			continue
		}

		var buffer bytes.Buffer
		entryWritten, err := io.Copy(&buffer, io.LimitReader(rr, maxArchiveEntryBytes+1))
		if err != nil {
			return records, fmt.Errorf("knowledge: read rar entry %s: %w", name, err)
		}
		if entryWritten > maxArchiveEntryBytes {
			log.Printf("knowledge: archive entry %s exceeds %d bytes, skipping", name, maxArchiveEntryBytes)
			continue
		}

		content := strings.TrimSpace(buffer.String())
		if content == "" || !utf8.ValidString(content) {
			continue
		}

		record, err := s.CreateDocument(ctx, userID, DocumentInput{
			Title:   documentTitleFromFilename(name),
			Content: content,
			Domain:  domain,
		})
		if err != nil {
			log.Printf("knowledge: ingest archive entry %s failed: %v", name, err)
			continue
		}
		records = append(records, *record)
	}

	if len(records) == 0 {
		return nil, errors.New("knowledge: archive contains no usable text entries")
	}
	return records, nil
}

func sanitizeArchiveEntry(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\\", "/")
	normalized = path.Clean(normalized)
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized == "." || normalized == "" || strings.HasPrefix(normalized, "../") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(normalized), "__macosx/") {
		return ""
	}
	return normalized
}

func isTextEntry(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".text":
		return true
	default:
		return false
	}
}

func documentTitleFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(title))
	if title == "" {
		return "Untitled document"
	}
	return title
}
