package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const contentColumns = "id, fact_id, content_hash, title, body, language, content_type, keywords_json, image_paths_json, audio_path, video_path, metadata_json, status, error_message, created_at, updated_at"

// ContentFilter narrows QueryContent.
type ContentFilter struct {
	Statuses []ContentStatus
	Language string
	Since    time.Time
	Limit    int
}

// InsertContent stores newly generated content with status GENERATED. A
// repeated content hash returns ErrDuplicate.
func (s *Store) InsertContent(ctx context.Context, content *Content) (*Content, error) {
	builder, err := s.contentInsert(content)
	if err != nil {
		return nil, err
	}
	id, err := s.insert(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("insert content: %w", err)
	}
	return s.GetContent(ctx, id)
}

// InsertContentAndMarkFact stores content and marks its fact processed in one
// transaction.
func (s *Store) InsertContentAndMarkFact(ctx context.Context, content *Content) (*Content, error) {
	builder, err := s.contentInsert(content)
	if err != nil {
		return nil, err
	}
	if content.FactID <= 0 {
		return nil, errors.New("content fact id is required")
	}
	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		if id, txErr = txInsert(ctx, tx, builder); txErr != nil {
			return txErr
		}
		res, txErr := txExec(ctx, tx, sq.Update("structured_facts").
			Set("processed", 1).
			Set("updated_at", s.timestamp()).
			Where(sq.Eq{"id": content.FactID}))
		if txErr != nil {
			return txErr
		}
		return requireAffected(res, fmt.Errorf("fact %d: %w", content.FactID, ErrNotFound))
	})
	if err != nil {
		return nil, fmt.Errorf("insert content: %w", err)
	}
	return s.GetContent(ctx, id)
}

func (s *Store) contentInsert(content *Content) (sq.InsertBuilder, error) {
	if content == nil {
		return sq.InsertBuilder{}, errors.New("content is nil")
	}
	if content.ContentHash == "" {
		return sq.InsertBuilder{}, errors.New("content hash is required")
	}
	keywords, imagePaths, metadata, err := encodeContentJSON(content)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	contentType := content.Type
	if contentType == "" {
		contentType = TypeArticle
	}
	now := s.timestamp()
	return sq.Insert("generated_content").
		Columns("fact_id", "content_hash", "title", "body", "language", "content_type", "keywords_json",
			"image_paths_json", "audio_path", "video_path", "metadata_json", "status", "created_at", "updated_at").
		Values(nullableInt(content.FactID), content.ContentHash, content.Title, content.Body, content.Language,
			contentType, keywords, imagePaths, nullableString(content.AudioPath), nullableString(content.VideoPath),
			metadata, ContentGenerated, now, now), nil
}

// UpdateContent persists the text fields, metadata, and status of content in
// one statement. Asset paths are left alone; AddContentImages and
// SetContentMedia own them so enhancement stages running beside monetization
// never overwrite each other. The statement only matches when the stored
// status may move to content.Status, so concurrent writers cannot regress the
// lifecycle.
func (s *Store) UpdateContent(ctx context.Context, content *Content) error {
	if content == nil {
		return errors.New("content is nil")
	}
	if _, ok := contentRank[content.Status]; !ok && !content.Status.IsError() {
		return fmt.Errorf("content %d: unknown status %q: %w", content.ID, content.Status, ErrInvalidTransition)
	}
	keywords, _, metadata, err := encodeContentJSON(content)
	if err != nil {
		return err
	}
	res, err := s.execBuilder(ctx, sq.Update("generated_content").
		Set("title", content.Title).
		Set("body", content.Body).
		Set("keywords_json", keywords).
		Set("metadata_json", metadata).
		Set("status", content.Status).
		Set("error_message", nullableString(content.Error)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": content.ID}).
		Where(sq.Eq{"status": predecessors(content.Status)}))
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return s.checkAffected(ctx, res, "generated_content", content.ID)
}

// SetContentStatus moves content to status, recording message. The same
// transition rules as UpdateContent apply.
func (s *Store) SetContentStatus(ctx context.Context, id int64, status ContentStatus, message string) error {
	if _, ok := contentRank[status]; !ok && !status.IsError() {
		return fmt.Errorf("content %d: unknown status %q: %w", id, status, ErrInvalidTransition)
	}
	res, err := s.execBuilder(ctx, sq.Update("generated_content").
		Set("status", status).
		Set("error_message", nullableString(message)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": predecessors(status)}))
	if err != nil {
		return fmt.Errorf("set content status: %w", err)
	}
	return s.checkAffected(ctx, res, "generated_content", id)
}

// AddContentImages appends image paths to content in a single statement.
func (s *Store) AddContentImages(ctx context.Context, id int64, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	encoded, err := encodeJSON(paths, "[]")
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx, `UPDATE generated_content
SET image_paths_json = (
	SELECT json_group_array(value) FROM (
		SELECT value FROM json_each(COALESCE(generated_content.image_paths_json, '[]'))
		UNION ALL
		SELECT value FROM json_each(?)
	)
), updated_at = ?
WHERE id = ?`, encoded, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("add content images: %w", err)
	}
	return s.checkAffected(ctx, res, "generated_content", id)
}

// SetContentMedia records narration and video paths. Empty values keep the
// stored path.
func (s *Store) SetContentMedia(ctx context.Context, id int64, audioPath, videoPath string) error {
	builder := sq.Update("generated_content").Set("updated_at", s.timestamp()).Where(sq.Eq{"id": id})
	if audioPath != "" {
		builder = builder.Set("audio_path", audioPath)
	}
	if videoPath != "" {
		builder = builder.Set("video_path", videoPath)
	}
	res, err := s.execBuilder(ctx, builder)
	if err != nil {
		return fmt.Errorf("set content media: %w", err)
	}
	return s.checkAffected(ctx, res, "generated_content", id)
}

// SetContentMetadata stores value under key in the content metadata object
// in a single statement, leaving other keys untouched.
func (s *Store) SetContentMetadata(ctx context.Context, id int64, key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("metadata key is required")
	}
	encoded, err := encodeJSON(value, "null")
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx, `UPDATE generated_content
SET metadata_json = json_set(COALESCE(metadata_json, '{}'), '$.' || json_quote(?), json(?)), updated_at = ?
WHERE id = ?`, key, encoded, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set content metadata: %w", err)
	}
	return s.checkAffected(ctx, res, "generated_content", id)
}

// GetContent fetches content by identifier; it returns nil when absent.
func (s *Store) GetContent(ctx context.Context, id int64) (*Content, error) {
	items, err := s.QueryContent(ctx, ContentFilter{}, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// QueryContent lists content oldest first.
func (s *Store) QueryContent(ctx context.Context, filter ContentFilter, ids ...int64) ([]*Content, error) {
	builder := sq.Select(contentColumns).From("generated_content").OrderBy("created_at", "id")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": toStrings(filter.Statuses)})
	}
	if filter.Language != "" {
		builder = builder.Where(sq.Eq{"language": filter.Language})
	}
	builder = applyWindow(builder, "created_at", filter.Since, filter.Limit)
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	return collect(rows, scanContent)
}

// ContentHashExists reports whether identical output was produced before.
func (s *Store) ContentHashExists(ctx context.Context, hash string) (bool, error) {
	return s.exists(ctx, "generated_content", "content_hash", hash)
}

// ContentByHash returns the content holding hash, or nil.
func (s *Store) ContentByHash(ctx context.Context, hash string) (*Content, error) {
	rows, err := s.queryBuilder(ctx, sq.Select(contentColumns).From("generated_content").Where(sq.Eq{"content_hash": hash}).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("content by hash: %w", err)
	}
	items, err := collect(rows, scanContent)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// ContentReadyForPublish returns up to limit GENERATED or MONETIZED items, oldest first.
func (s *Store) ContentReadyForPublish(ctx context.Context, limit int) ([]*Content, error) {
	return s.QueryContent(ctx, ContentFilter{
		Statuses: []ContentStatus{ContentGenerated, ContentMonetized},
		Limit:    limit,
	})
}

func encodeContentJSON(content *Content) (keywords, imagePaths, metadata string, err error) {
	if keywords, err = encodeJSON(content.Keywords, "[]"); err != nil {
		return "", "", "", err
	}
	if imagePaths, err = encodeJSON(content.ImagePaths, "[]"); err != nil {
		return "", "", "", err
	}
	if metadata, err = encodeJSON(content.Metadata, "{}"); err != nil {
		return "", "", "", err
	}
	return keywords, imagePaths, metadata, nil
}

func scanContent(row scanner) (*Content, error) {
	var (
		content    Content
		factID     sql.NullInt64
		ctype      string
		status     string
		keywords   sql.NullString
		images     sql.NullString
		audio      sql.NullString
		video      sql.NullString
		metadata   sql.NullString
		errMessage sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&content.ID, &factID, &content.ContentHash, &content.Title, &content.Body,
		&content.Language, &ctype, &keywords, &images, &audio, &video, &metadata, &status,
		&errMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	content.FactID = factID.Int64
	content.Type = ContentType(ctype)
	content.Status = ContentStatus(status)
	content.AudioPath = audio.String
	content.VideoPath = video.String
	content.Error = errMessage.String
	content.CreatedAt = parseTime(createdRaw)
	content.UpdatedAt = parseTime(updatedRaw)
	if err := decodeJSON(keywords, &content.Keywords); err != nil {
		return nil, err
	}
	if err := decodeJSON(images, &content.ImagePaths); err != nil {
		return nil, err
	}
	if err := decodeJSON(metadata, &content.Metadata); err != nil {
		return nil, err
	}
	if content.Metadata == nil {
		content.Metadata = map[string]any{}
	}
	return &content, nil
}
