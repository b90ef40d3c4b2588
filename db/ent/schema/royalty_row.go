package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// RoyaltyRow is the canonical normalized row. Column names and types here
// are a binding contract: the aggregation functions and the progress-polling
// clients read them directly.
type RoyaltyRow struct{ ent.Schema }

func (RoyaltyRow) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "royalty_rows"},
	}
}

func (RoyaltyRow) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		// explicit FK
		field.UUID("file_id", uuid.UUID{}),
		field.Int("row_index").NonNegative(),
		field.String("catalog").NotEmpty(),
		field.String("client_name").Optional().Nillable(),
		// 6-digit YYYYMM or null; aggregation groups by substring
		field.String("period").Optional().Nillable().MaxLen(6),
		field.String("metric").Optional().Nillable(),
		field.Float("value").Optional().Nillable(),
		field.String("content").NotEmpty().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("song_title").Optional().Nillable(),
		field.String("artist").Optional().Nillable(),
		field.String("composers").Optional().Nillable(),
		field.String("source_name").Optional().Nillable(),
		field.String("income_type").Optional().Nillable(),
		field.Int64("units").Optional().Nillable(),
		field.Float("amount_collected").Optional().Nillable(),
		field.Float("royalty_payable").Optional().Nillable(),
		field.String("isrc").Optional().Nillable(),
		field.Other("embedding", pgvector.Vector{}).
			SchemaType(map[string]string{dialect.Postgres: "vector(1536)"}),
	}
}

func (RoyaltyRow) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("file", StatementFile.Type).
			Ref("rows").
			Field("file_id").
			Unique().
			Required(),
	}
}

func (RoyaltyRow) Indexes() []ent.Index {
	return []ent.Index{
		// batch upserts are keyed on (file_id, row_index)
		index.Fields("file_id", "row_index").Unique(),
		index.Fields("catalog", "period"),
	}
}
