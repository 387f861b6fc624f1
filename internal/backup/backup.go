package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/services"
	"tabshot/internal/store"
	"tabshot/internal/tiering"
)

// FormatVersion is the document version written by Create.
const FormatVersion = 1

// Document is the serialized backup.
type Document struct {
	Version   int               `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Settings  map[string]string `json:"settings"`
	Items     []Item            `json:"items"`
}

// Item is one thumbnail entry. EmbeddedImageData is base64 and only present
// in full exports.
type Item struct {
	Identity          string `json:"identity"`
	URL               string `json:"url"`
	Title             string `json:"title,omitempty"`
	Filename          string `json:"filename,omitempty"`
	EmbeddedImageData string `json:"embeddedImageData,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
}

// Options selects the backup flavour.
type Options struct {
	// IncludeImages embeds every readable asset, from either tier.
	IncludeImages bool
}

// Result counts what an import did.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Manager creates and restores backups.
type Manager struct {
	store  *store.Store
	tiers  *tiering.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewManager wires a backup manager to the metadata index and storage tiers.
func NewManager(st *store.Store, tiers *tiering.Service, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		tiers:  tiers,
		logger: logging.NewComponentLogger(logger, "backup"),
		now:    time.Now,
	}
}

// Create snapshots settings and every metadata record, ordered by URL.
func (m *Manager) Create(ctx context.Context, opts Options) (*Document, error) {
	settings, err := m.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	records, err := m.store.All(ctx)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:   FormatVersion,
		Timestamp: m.now().UTC(),
		Settings:  settings,
		Items:     make([]Item, 0, len(records)),
	}
	for _, rec := range records {
		item := Item{
			Identity: rec.Identity,
			URL:      rec.SourceURL,
			Title:    rec.Title,
			Filename: rec.Filename,
		}
		if opts.IncludeImages {
			asset, err := m.tiers.Get(ctx, rec.Identity)
			if err != nil {
				m.logger.Warn("asset unreadable; exporting metadata only",
					logging.Identity(rec.Identity),
					logging.Error(err),
					logging.String(logging.FieldEventType, "export_asset_unreadable"),
					logging.String(logging.FieldErrorHint, "run 'tabshot dir reconcile' or recapture the page"),
				)
			} else if asset != nil {
				item.EmbeddedImageData = base64.StdEncoding.EncodeToString(asset.Data)
				item.MimeType = asset.MimeType
			}
		}
		doc.Items = append(doc.Items, item)
	}
	sort.Slice(doc.Items, func(i, j int) bool {
		if doc.Items[i].URL == doc.Items[j].URL {
			return doc.Items[i].Identity < doc.Items[j].Identity
		}
		return doc.Items[i].URL < doc.Items[j].URL
	})

	m.logger.Info("backup created",
		logging.Int("items", len(doc.Items)),
		logging.Bool("images", opts.IncludeImages),
	)
	return doc, nil
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Read decodes and version-checks a backup document.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "backup", "read", "malformed backup document", err)
	}
	if doc.Version < 1 || doc.Version > FormatVersion {
		return nil, services.Wrap(services.ErrValidation, "backup", "read",
			fmt.Sprintf("unsupported backup version %d", doc.Version), nil)
	}
	return &doc, nil
}

// Import restores r additively. Settings are applied; an item whose identity
// already owns a readable asset is skipped, every other item is written. The
// asset write precedes the record write that marks it saved.
func (m *Manager) Import(ctx context.Context, r io.Reader) (Result, error) {
	doc, err := Read(r)
	if err != nil {
		return Result{}, err
	}
	for key, value := range doc.Settings {
		if err := m.store.PutSetting(ctx, key, value); err != nil {
			return Result{}, err
		}
	}

	var res Result
	for _, item := range doc.Items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		imported, err := m.importItem(ctx, item)
		if err != nil {
			return res, err
		}
		if imported {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	m.logger.Info("backup imported",
		logging.Int("imported", res.Imported),
		logging.Int("skipped", res.Skipped),
		logging.Int("settings", len(doc.Settings)),
	)
	return res, nil
}

func (m *Manager) importItem(ctx context.Context, item Item) (bool, error) {
	url := strings.TrimSpace(item.URL)
	identity := strings.TrimSpace(item.Identity)
	if identity == "" {
		derived, err := store.IdentityFor(url)
		if err != nil || url == "" {
			m.logger.Debug("skipping backup item without identity or url", logging.String("url", url))
			return false, nil
		}
		identity = derived
	}

	existing, err := m.tiers.Get(ctx, identity)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	rec := store.Record{
		Identity:  identity,
		SourceURL: url,
		Title:     item.Title,
		Filename:  item.Filename,
		Status:    store.StatusNone,
	}
	if item.EmbeddedImageData != "" {
		asset, err := decodeAsset(identity, item)
		if err != nil {
			logging.WarnWithContext(m.logger, "backup image unusable; importing metadata only", "import_image_invalid",
				logging.Identity(identity),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "recapture the page or reconcile its file"),
				logging.String(logging.FieldImpact, "record imported without a thumbnail"),
			)
		} else {
			if err := m.tiers.PutEmbedded(ctx, *asset); err != nil {
				return false, err
			}
			rec.Status = store.StatusSavedEmbedded
		}
	}
	if err := m.store.Set(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func decodeAsset(identity string, item Item) (*store.Asset, error) {
	data, err := base64.StdEncoding.DecodeString(item.EmbeddedImageData)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "backup", "decode", "invalid base64 image data", err)
	}
	width, height, mime, err := imaging.Inspect(data)
	if err != nil {
		return nil, err
	}
	if item.MimeType != "" {
		mime = item.MimeType
	}
	return &store.Asset{
		Identity: identity,
		MimeType: mime,
		Data:     data,
		Width:    width,
		Height:   height,
		ByteSize: int64(len(data)),
	}, nil
}
