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
)

type StatementFile struct{ ent.Schema }

func (StatementFile) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "files"},
	}
}

func (StatementFile) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("name").NotEmpty(),
		field.String("mime_type").Optional(),
		field.String("catalog").NotEmpty(),
		field.String("doc_type").NotEmpty(),
		field.String("status").Default("uploaded"),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
	}
}

func (StatementFile) Edges() []ent.Edge {
	return []ent.Edge{
		// ONE file -> MANY jobs
		edge.To("jobs", ProcessingQueue.Type),
		// ONE file -> MANY rows
		edge.To("rows", RoyaltyRow.Type),
	}
}

func (StatementFile) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("catalog"),
	}
}
