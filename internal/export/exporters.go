package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DirExporter saves documents into a directory, like a browser download.
type DirExporter struct {
	Dir string
}

func (e DirExporter) Name() string { return "download" }

func (e DirExporter) Export(_ context.Context, doc Document) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", e.Dir, err)
	}
	path := filepath.Join(e.Dir, doc.FileName)
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ResponseExporter sends the document as an HTTP attachment.
type ResponseExporter struct {
	W http.ResponseWriter
}

func (e ResponseExporter) Name() string { return "download" }

func (e ResponseExporter) Export(_ context.Context, doc Document) error {
	e.W.Header().Set("Content-Type", doc.ContentType)
	e.W.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(doc.FileName))
	e.W.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	if _, err := e.W.Write(doc.Data); err != nil {
		return fmt.Errorf("%w: %w", ErrResponseStarted, err)
	}
	return nil
}

// sharedDocument is the envelope pushed onto the share inbox.
type sharedDocument struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	SharedAt    time.Time `json:"shared_at"`
}

// RedisShareExporter shares documents by pushing them onto a redis list that
// acts as the teacher's inbox.
type RedisShareExporter struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisShareExporter(client *redis.Client, key string) *RedisShareExporter {
	return &RedisShareExporter{client: client, key: key, now: time.Now}
}

func (e *RedisShareExporter) Name() string { return "share" }

func (e *RedisShareExporter) Export(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(sharedDocument{
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Data:        doc.Data,
		SharedAt:    e.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal shared document: %w", err)
	}
	if err := e.client.LPush(ctx, e.key, payload).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", e.key, err)
	}
	return nil
}
