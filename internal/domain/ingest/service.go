// Package ingest runs the upload, delete and listing workflows that keep the
// object store and the file ledger consistent.
//
// Writes go to the object store first and to the ledger second. Deletes
// remove the remote object first and keep the row when that fails. There is
// no compensation for a blob written before a failed ledger commit;
// Reconcile reports such orphans.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/pkg/kml"
	"github.com/Jm9710/appProducotres/internal/pkg/utils"
	"github.com/Jm9710/appProducotres/internal/repository"
	"github.com/Jm9710/appProducotres/internal/storage"
)

const (
	DefaultMaxUploadSize = 50 << 20
	DefaultListingTTL    = 10 * time.Minute
	DefaultSignTTL       = time.Hour

	kmlCategory = "kml"
)

type Options struct {
	MaxUploadSize int64
	// ListingTTL bounds the signed URLs of the classified listing.
	ListingTTL time.Duration
	// SignTTL bounds the signed URLs handed to the map.
	SignTTL time.Duration
}

type Service struct {
	ledger *repository.Ledger
	store  storage.Store
	events Publisher
	log    zerolog.Logger
	opts   Options
	now    func() time.Time
}

func NewService(ledger *repository.Ledger, store storage.Store, events Publisher, log zerolog.Logger, opts Options) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if opts.ListingTTL <= 0 {
		opts.ListingTTL = DefaultListingTTL
	}
	if opts.SignTTL <= 0 {
		opts.SignTTL = DefaultSignTTL
	}
	return &Service{
		ledger: ledger,
		store:  store,
		events: events,
		log:    log.With().Str("component", "ingest").Logger(),
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ObjectKey builds {producer_code}/{category}/{filename}.
func ObjectKey(code, category, filename string) string {
	return code + "/" + category + "/" + filename
}

func (s *Service) checkSize(size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if size > s.opts.MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

func (s *Service) producer(ctx context.Context, code string) (*domain.Usuario, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}
	p, err := s.ledger.Producers.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProducerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find producer: %v", ErrPersistence, err)
	}
	return p, nil
}

// UploadFile stores a document and records it against the producer's KML.
// Every lookup, including the KML, happens before the remote write.
func (s *Service) UploadFile(ctx context.Context, in UploadFileInput) (file *domain.Archivo, err error) {
	defer func() { observeOp("upload_file", err) }()

	filename := utils.SecureFilename(in.Filename)
	if filename == "" {
		return nil, ErrMissingFilename
	}
	if err := s.checkSize(in.Size); err != nil {
		return nil, err
	}

	p, err := s.producer(ctx, in.ProducerCode)
	if err != nil {
		return nil, err
	}

	ft, err := s.ledger.Types.FileTypeByID(ctx, in.FileTypeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFileTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find file type: %v", ErrPersistence, err)
	}

	k, err := s.ledger.KMLs.FindByProducer(ctx, p.IDUsuario)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrKMLNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find kml: %v", ErrPersistence, err)
	}

	key := ObjectKey(p.Code(), ft.Tipo, filename)
	if err := s.store.Put(ctx, key, io.LimitReader(in.Body, s.opts.MaxUploadSize), ""); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("object upload failed")
		return nil, fmt.Errorf("%w: %v", ErrRemoteStorage, err)
	}

	kmlID := k.IDKML
	file = &domain.Archivo{
		Nombre:        filename,
		Disponible:    true,
		RutaDescarga:  s.store.URL(key),
		FechaSubida:   s.now(),
		UsAsociado:    p.IDUsuario,
		KMLAsociado:   &kmlID,
		TipoArchivoID: ft.IDTipoArchivo,
	}
	if err := s.ledger.Files.Create(ctx, file); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("file row insert failed, object left orphaned")
		return nil, fmt.Errorf("%w: insert file: %v", ErrPersistence, err)
	}
	file.Tipo = ft

	s.events.Publish(Event{Type: EventFileUploaded, CodProductor: p.Code(), Payload: file})
	return file, nil
}

// UploadKML parses the document, stores it under the producer's kml prefix
// and points the producer's single KML row at it.
func (s *Service) UploadKML(ctx context.Context, in UploadKMLInput) (out *KMLUpload, err error) {
	defer func() { observeOp("upload_kml", err) }()

	filename := utils.SecureFilename(in.Filename)
	if filename == "" {
		return nil, ErrMissingFilename
	}
	if !utils.HasExt(filename, ".kml") {
		return nil, ErrNotKML
	}
	if err := s.checkSize(in.Size); err != nil {
		return nil, err
	}

	p, err := s.producer(ctx, in.ProducerCode)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.opts.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ErrValidation, err)
	}
	if int64(len(data)) > s.opts.MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	fc, err := kml.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	kmlFeaturesExtracted.Observe(float64(len(fc.Features)))

	key := ObjectKey(p.Code(), kmlCategory, filename)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), ""); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("kml upload failed")
		return nil, fmt.Errorf("%w: %v", ErrRemoteStorage, err)
	}

	var record *domain.KML
	err = s.ledger.Transaction(ctx, func(tx *repository.Ledger) error {
		var err error
		record, err = tx.KMLs.Upsert(ctx, p.IDUsuario, s.store.URL(key), s.now())
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Int64("producer_id", p.IDUsuario).Msg("kml upsert failed")
		return nil, fmt.Errorf("%w: upsert kml: %v", ErrPersistence, err)
	}

	s.log.Info().
		Str("cod_productor", p.Code()).
		Int64("id_kml", record.IDKML).
		Int("features", len(fc.Features)).
		Msg("kml stored")
	s.events.Publish(Event{Type: EventKMLUpdated, CodProductor: p.Code(), Payload: fc})
	return &KMLUpload{KML: record, GeoJSON: fc}, nil
}

// DeleteFileByName removes the first file row carrying name. Names are not
// unique; DeleteFileByID is the unambiguous variant.
func (s *Service) DeleteFileByName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingName
	}
	f, err := s.ledger.Files.FindByName(ctx, name)
	if err != nil {
		return s.fileLookupErr(err)
	}
	return s.deleteFile(ctx, f)
}

func (s *Service) DeleteFileByID(ctx context.Context, id int64) error {
	f, err := s.ledger.Files.FindByID(ctx, id)
	if err != nil {
		return s.fileLookupErr(err)
	}
	return s.deleteFile(ctx, f)
}

func (s *Service) fileLookupErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrFileNotFound
	}
	return fmt.Errorf("%w: find file: %v", ErrPersistence, err)
}

// deleteFile keeps the row when the remote delete fails.
func (s *Service) deleteFile(ctx context.Context, f *domain.Archivo) (err error) {
	defer func() { observeOp("delete_file", err) }()

	if err := s.store.Delete(ctx, f.RutaDescarga); err != nil {
		s.log.Error().Err(err).Int64("id_archivo", f.IDArchivo).Str("ref", f.RutaDescarga).Msg("object delete failed, row kept")
		return fmt.Errorf("%w: %v", ErrRemoteStorage, err)
	}

	err = s.ledger.Transaction(ctx, func(tx *repository.Ledger) error {
		return tx.Files.Delete(ctx, f.IDArchivo)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Int64("id_archivo", f.IDArchivo).Msg("file row delete failed")
		return fmt.Errorf("%w: delete file: %v", ErrPersistence, err)
	}

	code := ""
	if p, perr := s.ledger.Producers.GetByID(ctx, f.UsAsociado); perr == nil {
		code = p.Code()
	}
	s.events.Publish(Event{Type: EventFileDeleted, CodProductor: code, Payload: f})
	return nil
}

// ClassifiedListing groups the producer's files by type name and replaces
// each persisted URL with a signed one valid for ListingTTL.
func (s *Service) ClassifiedListing(ctx context.Context, code, category string) (*ClassifiedListing, error) {
	p, err := s.producer(ctx, code)
	if err != nil {
		return nil, err
	}

	groups, err := s.ledger.Files.Classify(ctx, p.IDUsuario, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("%w: classify files: %v", ErrPersistence, err)
	}

	for _, files := range groups {
		for i := range files {
			key := s.store.KeyFromURL(files[i].RutaDescarga)
			signed, err := s.store.Sign(ctx, key, s.opts.ListingTTL)
			if err != nil {
				s.log.Error().Err(err).Str("key", key).Msg("signing failed")
				return nil, fmt.Errorf("%w: %v", ErrRemoteStorage, err)
			}
			files[i].RutaDescarga = signed
		}
	}

	return &ClassifiedListing{
		Productor:    p.Nombre,
		CodProductor: p.Code(),
		Archivos:     groups,
	}, nil
}

// ListFiles is the flat listing with type names resolved.
func (s *Service) ListFiles(ctx context.Context, code string) ([]FileItem, error) {
	p, err := s.producer(ctx, code)
	if err != nil {
		return nil, err
	}

	files, err := s.ledger.Files.ListByProducer(ctx, p.IDUsuario)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", ErrPersistence, err)
	}

	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		item := FileItem{Archivo: f}
		if f.Tipo != nil {
			name := f.Tipo.Tipo
			item.TipoArchivo = &name
		}
		out = append(out, item)
	}
	return out, nil
}

// ListKML returns the producer's KML rows with their associated files.
func (s *Service) ListKML(ctx context.Context, code string) (*KMLListing, error) {
	p, err := s.producer(ctx, code)
	if err != nil {
		return nil, err
	}

	kmls, err := s.ledger.KMLs.ListWithFiles(ctx, p.IDUsuario)
	if err != nil {
		return nil, fmt.Errorf("%w: list kml: %v", ErrPersistence, err)
	}
	if kmls == nil {
		kmls = []domain.KML{}
	}
	return &KMLListing{Productor: p.Nombre, CodProductor: p.Code(), KMLs: kmls}, nil
}

// ListKMLSignedURLs returns a signed download URL per KML of the producer.
func (s *Service) ListKMLSignedURLs(ctx context.Context, code string) ([]string, error) {
	p, err := s.producer(ctx, code)
	if err != nil {
		return nil, err
	}

	kmls, err := s.ledger.KMLs.ListWithFiles(ctx, p.IDUsuario)
	if err != nil {
		return nil, fmt.Errorf("%w: list kml: %v", ErrPersistence, err)
	}

	urls := make([]string, 0, len(kmls))
	for _, k := range kmls {
		key := s.store.KeyFromURL(k.RutaArchivo)
		signed, err := s.store.Sign(ctx, key, s.opts.SignTTL)
		if err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("signing failed")
			return nil, fmt.Errorf("%w: %v", ErrRemoteStorage, err)
		}
		urls = append(urls, signed)
	}
	return urls, nil
}

// PurgeProducer deletes every remote object of the producer and then, in one
// transaction, its files, KML rows and the account itself. The first remote
// failure aborts with all rows intact.
func (s *Service) PurgeProducer(ctx context.Context, producerID int64) (err error) {
	defer func() { observeOp("purge_producer", err) }()

	p, err := s.ledger.Producers.GetByID(ctx, producerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrProducerNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: find producer: %v", ErrPersistence, err)
	}

	refs, err := s.references(ctx, p.IDUsuario)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.store.Delete(ctx, ref); err != nil {
			s.log.Error().Err(err).Int64("producer_id", producerID).Str("ref", ref).Msg("purge aborted on object delete")
			return fmt.Errorf("%w: %v", ErrRemoteStorage, err)
		}
	}

	err = s.ledger.Transaction(ctx, func(tx *repository.Ledger) error {
		if err := tx.Files.DeleteByProducer(ctx, producerID); err != nil {
			return err
		}
		if err := tx.KMLs.DeleteByProducer(ctx, producerID); err != nil {
			return err
		}
		if err := tx.KMLs.DeleteTaipasByProducer(ctx, producerID); err != nil {
			return err
		}
		return tx.Producers.Delete(ctx, producerID)
	})
	if err != nil {
		s.log.Error().Err(err).Int64("producer_id", producerID).Msg("purge rows failed")
		return fmt.Errorf("%w: purge producer: %v", ErrPersistence, err)
	}

	s.log.Info().Int64("producer_id", producerID).Int("objects", len(refs)).Msg("producer purged")
	return nil
}

// references lists every persisted object URL owned by the producer.
func (s *Service) references(ctx context.Context, producerID int64) ([]string, error) {
	files, err := s.ledger.Files.ListByProducer(ctx, producerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", ErrPersistence, err)
	}
	kmls, err := s.ledger.KMLs.ListWithFiles(ctx, producerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list kml: %v", ErrPersistence, err)
	}
	taipas, err := s.ledger.KMLs.ListTaipasByProducer(ctx, producerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list kml taipas: %v", ErrPersistence, err)
	}

	refs := make([]string, 0, len(files)+len(kmls)+len(taipas))
	for _, f := range files {
		refs = append(refs, f.RutaDescarga)
	}
	for _, k := range kmls {
		refs = append(refs, k.RutaArchivo)
	}
	for _, t := range taipas {
		refs = append(refs, t.RutaArchivo)
	}
	return refs, nil
}

// Reconcile lists the producer's bucket prefix and ledger references
// concurrently and reports the difference.
func (s *Service) Reconcile(ctx context.Context, code string) (*ReconcileReport, error) {
	p, err := s.producer(ctx, code)
	if err != nil {
		return nil, err
	}

	var (
		objects []string
		refs    []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := s.store.List(gctx, p.Code()+"/")
		if err != nil {
			s.log.Error().Err(err).Str("cod_productor", p.Code()).Msg("bucket listing failed")
			return fmt.Errorf("%w: %v", ErrRemoteStorage, err)
		}
		objects = keys
		return nil
	})
	g.Go(func() error {
		r, err := s.references(gctx, p.IDUsuario)
		refs = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inBucket := make(map[string]bool, len(objects))
	for _, k := range objects {
		inBucket[k] = true
	}
	inLedger := make(map[string]bool, len(refs))
	for _, ref := range refs {
		inLedger[s.store.KeyFromURL(ref)] = true
	}

	report := &ReconcileReport{
		CodProductor:    p.Code(),
		ObjectsScanned:  len(objects),
		RowsScanned:     len(refs),
		OrphanedObjects: []string{},
		MissingObjects:  []string{},
		CheckedAt:       s.now(),
	}
	for k := range inBucket {
		if !inLedger[k] {
			report.OrphanedObjects = append(report.OrphanedObjects, k)
		}
	}
	for k := range inLedger {
		if !inBucket[k] {
			report.MissingObjects = append(report.MissingObjects, k)
		}
	}
	sort.Strings(report.OrphanedObjects)
	sort.Strings(report.MissingObjects)

	reconcileIssuesTotal.WithLabelValues("orphaned_object").Add(float64(len(report.OrphanedObjects)))
	reconcileIssuesTotal.WithLabelValues("missing_object").Add(float64(len(report.MissingObjects)))

	if !report.Clean() {
		s.log.Warn().
			Str("cod_productor", report.CodProductor).
			Int("orphaned", len(report.OrphanedObjects)).
			Int("missing", len(report.MissingObjects)).
			Msg("reconciliation found mismatches")
	}
	return report, nil
}

// ReconcileAll runs Reconcile for every account that has a producer code.
func (s *Service) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	users, err := s.ledger.Producers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list producers: %v", ErrPersistence, err)
	}

	var reports []*ReconcileReport
	for _, u := range users {
		if strings.TrimSpace(u.Code()) == "" {
			continue
		}
		r, err := s.Reconcile(ctx, u.Code())
		if err != nil {
			return reports, fmt.Errorf("reconcile %s: %w", u.Code(), err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
