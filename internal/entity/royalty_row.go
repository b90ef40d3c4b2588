package entity

import "github.com/google/uuid"

// RoyaltyRow is the normalized unit persisted per source record.
//
// Period is either nil or a 6-digit YYYYMM string with month 01-12.
// Content is the deterministic, order-preserving concatenation of the raw
// field/value pairs, the exact text that gets embedded. A row is never
// persisted without its embedding.
type RoyaltyRow struct {
	FileID          uuid.UUID `json:"file_id"`
	RowIndex        int       `json:"row_index"`
	Catalog         string    `json:"catalog"`
	ClientName      *string   `json:"client_name,omitempty"`
	Period          *string   `json:"period,omitempty"`
	Metric          *string   `json:"metric,omitempty"`
	Value           *float64  `json:"value,omitempty"`
	Content         string    `json:"content"`
	SongTitle       *string   `json:"song_title,omitempty"`
	Artist          *string   `json:"artist,omitempty"`
	Composers       *string   `json:"composers,omitempty"`
	SourceName      *string   `json:"source_name,omitempty"`
	IncomeType      *string   `json:"income_type,omitempty"`
	Units           *int64    `json:"units,omitempty"`
	AmountCollected *float64  `json:"amount_collected,omitempty"`
	RoyaltyPayable  *float64  `json:"royalty_payable,omitempty"`
	ISRC            *string   `json:"isrc,omitempty"`
	Embedding       []float32 `json:"-"`
}
