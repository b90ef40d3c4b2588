package normalize

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/internal/entity"
	"github.com/statementhq/royalty-pipeline/internal/parser"
)

// canonicalField identifies a column of the canonical row shape.
type canonicalField int

const (
	fieldNone canonicalField = iota
	fieldCatalog
	fieldClientName
	fieldPeriod
	fieldMetric
	fieldValue
	fieldSongTitle
	fieldArtist
	fieldComposers
	fieldSourceName
	fieldIncomeType
	fieldUnits
	fieldAmountCollected
	fieldRoyaltyPayable
	fieldISRC
)

// headerSynonyms maps normalized source headers (lowercased, single-spaced,
// underscores folded to spaces) to canonical fields. Distributors name their
// columns inconsistently; this table is where that mess is absorbed.
var headerSynonyms = map[string]canonicalField{
	"catalog":     fieldCatalog,
	"catalog id":  fieldCatalog,
	"client code": fieldCatalog,
	"client id":   fieldCatalog,

	"client":      fieldClientName,
	"client name": fieldClientName,
	"payee":       fieldClientName,
	"payee name":  fieldClientName,

	"period":            fieldPeriod,
	"income period":     fieldPeriod,
	"statement period":  fieldPeriod,
	"royalty period":    fieldPeriod,
	"accounting period": fieldPeriod,

	"metric": fieldMetric,

	"value": fieldValue,

	"song title":  fieldSongTitle,
	"title":       fieldSongTitle,
	"track title": fieldSongTitle,
	"work title":  fieldSongTitle,
	"song":        fieldSongTitle,

	"artist":      fieldArtist,
	"artist name": fieldArtist,
	"performer":   fieldArtist,

	"composer":  fieldComposers,
	"composers": fieldComposers,
	"writer":    fieldComposers,
	"writers":   fieldComposers,

	"source":      fieldSourceName,
	"source name": fieldSourceName,
	"society":     fieldSourceName,
	"platform":    fieldSourceName,

	"income type":      fieldIncomeType,
	"income type name": fieldIncomeType,
	"income source":    fieldIncomeType,
	"revenue type":     fieldIncomeType,

	"units":    fieldUnits,
	"quantity": fieldUnits,
	"plays":    fieldUnits,
	"streams":  fieldUnits,

	"amount collected": fieldAmountCollected,
	"gross amount":     fieldAmountCollected,
	"gross":            fieldAmountCollected,
	"amount":           fieldAmountCollected,

	"royalty payable": fieldRoyaltyPayable,
	"net amount":      fieldRoyaltyPayable,
	"net royalty":     fieldRoyaltyPayable,
	"royalty amount":  fieldRoyaltyPayable,
	"payable":         fieldRoyaltyPayable,

	"isrc":      fieldISRC,
	"isrc code": fieldISRC,
}

// Normalizer maps one raw parsed record to the canonical row shape.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize builds the canonical row for one raw record. Catalog falls back
// to the job's catalog when the statement carries no client code column.
// Data-quality problems (bad periods, unparseable numbers) degrade to nil
// with a warning; they never abort ingestion.
func (n *Normalizer) Normalize(rec parser.RawRecord, fileID uuid.UUID, catalog string, rowIndex int) entity.RoyaltyRow {
	row := entity.RoyaltyRow{
		FileID:   fileID,
		RowIndex: rowIndex,
		Catalog:  catalog,
		Content:  BuildContent(rec),
	}

	for _, field := range rec.Fields {
		raw := rec.Values[field]
		switch headerSynonyms[normalizeHeader(field)] {
		case fieldCatalog:
			if v := ValueOrNull(raw); v != nil {
				row.Catalog = *v
			}
		case fieldClientName:
			row.ClientName = ValueOrNull(raw)
		case fieldPeriod:
			row.Period = NormalizePeriod(raw)
			if row.Period == nil && strings.TrimSpace(raw) != "" {
				n.logger.Warn("normalize.period.unrecognized", "raw", raw, "row_index", rowIndex)
			}
		case fieldMetric:
			row.Metric = ValueOrNull(raw)
		case fieldValue:
			row.Value = NumOrNull(raw)
		case fieldSongTitle:
			row.SongTitle = ValueOrNull(raw)
		case fieldArtist:
			row.Artist = ValueOrNull(raw)
		case fieldComposers:
			row.Composers = ValueOrNull(raw)
		case fieldSourceName:
			row.SourceName = ValueOrNull(raw)
		case fieldIncomeType:
			row.IncomeType = ValueOrNull(raw)
		case fieldUnits:
			row.Units = IntOrNull(raw)
		case fieldAmountCollected:
			row.AmountCollected = NumOrNull(raw)
		case fieldRoyaltyPayable:
			row.RoyaltyPayable = NumOrNull(raw)
		case fieldISRC:
			row.ISRC = ValueOrNull(raw)
		}
	}
	return row
}

// BuildContent joins the raw field/value pairs in header order. This is the
// exact text that gets embedded, so it must be reproducible: same record in,
// same string out.
func BuildContent(rec parser.RawRecord) string {
	parts := make([]string, 0, len(rec.Fields))
	for _, field := range rec.Fields {
		parts = append(parts, field+": "+strings.TrimSpace(rec.Values[field]))
	}
	return strings.Join(parts, " | ")
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}
