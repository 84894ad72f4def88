package filesync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// Files above this size go through an upload session.
	SingleUploadLimit = 150 << 20
	ChunkSize         = 8 << 20
)

type DropboxConfig struct {
	AppKey       string
	AppSecret    string
	RefreshToken string
	AccessToken  string
}

// Enabled reports whether enough credentials are present to build a client.
func (c DropboxConfig) Enabled() bool {
	return c.hasRefresh() || c.AccessToken != ""
}

func (c DropboxConfig) hasRefresh() bool {
	return c.RefreshToken != "" && c.AppKey != "" && c.AppSecret != ""
}

// filesAPI is the part of files.Client used here.
type filesAPI interface {
	ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error)
	ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error)
	GetMetadata(arg *files.GetMetadataArg) (files.IsMetadata, error)
	CreateFolderV2(arg *files.CreateFolderArg) (*files.CreateFolderResult, error)
	Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error)
	UploadSessionStart(arg *files.UploadSessionStartArg, content io.Reader) (*files.UploadSessionStartResult, error)
	UploadSessionAppendV2(arg *files.UploadSessionAppendArg, content io.Reader) error
	UploadSessionFinish(arg *files.UploadSessionFinishArg, content io.Reader) (*files.FileMetadata, error)
	Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error)
	MoveV2(arg *files.RelocationArg) (*files.RelocationResult, error)
}

type Dropbox struct {
	api    filesAPI
	logger zerolog.Logger
}

// NewDropbox prefers a refresh token so short lived access tokens renew on
// their own; a bare access token is accepted as a fallback.
func NewDropbox(cfg DropboxConfig, logger zerolog.Logger) (*Dropbox, error) {
	var dbxCfg dropbox.Config
	switch {
	case cfg.hasRefresh():
		conf := &oauth2.Config{
			ClientID:     cfg.AppKey,
			ClientSecret: cfg.AppSecret,
			Endpoint:     dropbox.OAuthEndpoint(""),
		}
		dbxCfg.Client = conf.Client(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	case cfg.AccessToken != "":
		dbxCfg.Token = cfg.AccessToken
	default:
		return nil, ErrNotConfigured
	}

	return newDropbox(files.New(dbxCfg), logger), nil
}

func newDropbox(api filesAPI, logger zerolog.Logger) *Dropbox {
	return &Dropbox{
		api:    api,
		logger: logger.With().Str("component", "dropbox").Logger(),
	}
}

// apiPath converts a normalised path into the form the API expects, where
// the root folder is the empty string.
func apiPath(p string) string {
	p = NormPath(p)
	if p == "/" {
		return ""
	}
	return p
}

func overwrite() *files.WriteMode {
	return &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
}

func (d *Dropbox) List(ctx context.Context, folder string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := d.api.ListFolder(files.NewListFolderArg(apiPath(folder)))
	if err != nil {
		d.logger.Error().Err(err).Str("folder", folder).Msg("list folder failed")
		return nil, fmt.Errorf("dropbox list %s: %w", NormPath(folder), err)
	}

	entries := toEntries(res.Entries)
	for res.HasMore {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err = d.api.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, fmt.Errorf("dropbox list %s: %w", NormPath(folder), err)
		}
		entries = append(entries, toEntries(res.Entries)...)
	}
	return entries, nil
}

func toEntries(in []files.IsMetadata) []Entry {
	out := make([]Entry, 0, len(in))
	for _, m := range in {
		switch e := m.(type) {
		case *files.FileMetadata:
			size := e.Size
			entry := Entry{Name: e.Name, Path: firstNonEmpty(e.PathLower, e.PathDisplay), Type: TypeFile, Size: &size}
			if !e.ServerModified.IsZero() {
				modified := e.ServerModified
				entry.ServerModified = &modified
			}
			out = append(out, entry)
		case *files.FolderMetadata:
			out = append(out, Entry{Name: e.Name, Path: firstNonEmpty(e.PathLower, e.PathDisplay), Type: TypeFolder})
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (d *Dropbox) Upload(ctx context.Context, dst string, r io.Reader, size int64) error {
	dst = NormPath(dst)
	if err := d.ensureFolder(ctx, ParentDir(dst)); err != nil {
		return fmt.Errorf("dropbox upload %s: %w", dst, err)
	}

	var err error
	if size <= SingleUploadLimit {
		arg := files.NewUploadArg(dst)
		arg.Mode = overwrite()
		_, err = d.api.Upload(arg, r)
	} else {
		err = d.uploadSession(ctx, dst, r, size)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("path", dst).Int64("size", size).Msg("upload failed")
		return fmt.Errorf("dropbox upload %s: %w", dst, err)
	}
	return nil
}

func (d *Dropbox) uploadSession(ctx context.Context, dst string, r io.Reader, size int64) error {
	buf := make([]byte, ChunkSize)

	n, err := io.ReadFull(r, buf)
	if err != nil {
		return err
	}
	start, err := d.api.UploadSessionStart(files.NewUploadSessionStartArg(), bytes.NewReader(buf[:n]))
	if err != nil {
		return err
	}

	offset := uint64(n)
	cursor := files.NewUploadSessionCursor(start.SessionId, offset)
	commit := files.NewCommitInfo(dst)
	commit.Mode = overwrite()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := uint64(size) - offset
		if remaining <= ChunkSize {
			n, err := io.ReadFull(r, buf[:remaining])
			if err != nil {
				return err
			}
			_, err = d.api.UploadSessionFinish(files.NewUploadSessionFinishArg(cursor, commit), bytes.NewReader(buf[:n]))
			return err
		}

		n, err := io.ReadFull(r, buf)
		if err != nil {
			return err
		}
		if err := d.api.UploadSessionAppendV2(files.NewUploadSessionAppendArg(cursor), bytes.NewReader(buf[:n])); err != nil {
			return err
		}
		offset += uint64(n)
		cursor.Offset = offset
	}
}

func (d *Dropbox) Download(ctx context.Context, src string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	src = NormPath(src)
	meta, body, err := d.api.Download(files.NewDownloadArg(src))
	if err != nil {
		d.logger.Error().Err(err).Str("path", src).Msg("download failed")
		return nil, "", fmt.Errorf("dropbox download %s: %w", src, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("dropbox download %s: %w", src, err)
	}
	return data, meta.Name, nil
}

func (d *Dropbox) Move(ctx context.Context, from, to string) error {
	from, to = NormPath(from), NormPath(to)
	if err := d.ensureFolder(ctx, ParentDir(to)); err != nil {
		return fmt.Errorf("dropbox move %s: %w", from, err)
	}

	arg := files.NewRelocationArg(from, to)
	arg.Autorename = true
	if _, err := d.api.MoveV2(arg); err != nil {
		d.logger.Error().Err(err).Str("from", from).Str("to", to).Msg("move failed")
		return fmt.Errorf("dropbox move %s -> %s: %w", from, to, err)
	}
	return nil
}

// ensureFolder creates every missing segment of folder. A conflict while
// creating means another request created it first and is ignored.
func (d *Dropbox) ensureFolder(ctx context.Context, folder string) error {
	folder = NormPath(folder)
	if folder == "/" {
		return nil
	}

	cur := ""
	for _, part := range strings.Split(strings.Trim(folder, "/"), "/") {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur += "/" + part
		if _, err := d.api.GetMetadata(files.NewGetMetadataArg(cur)); err == nil {
			continue
		}
		if _, err := d.api.CreateFolderV2(files.NewCreateFolderArg(cur)); err != nil && !isConflict(err) {
			return err
		}
	}
	return nil
}

func isConflict(err error) bool {
	return strings.Contains(err.Error(), "conflict")
}

var _ Backend = (*Dropbox)(nil)
