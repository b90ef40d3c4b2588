package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/constants"
	"github.com/statementhq/royalty-pipeline/db/ent/schema/utils"
)

type ProcessingQueue struct{ ent.Schema }

func (ProcessingQueue) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "processing_queue"},
	}
}

func (ProcessingQueue) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		// explicit FK
		field.UUID("file_id", uuid.UUID{}),
		field.String("storage_path").NotEmpty(),
		field.String("catalog").NotEmpty(),
		field.String("doc_type").NotEmpty(),
		field.String("status").Default(string(constants.JobStatusPending)).
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.Int("attempts").Default(0).NonNegative(),
		field.Int("processed_row_count").Default(0).NonNegative(),
		field.Int("total_row_count").Default(0).NonNegative(),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (ProcessingQueue) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("file", StatementFile.Type).
			Ref("jobs").
			Field("file_id").
			Unique().
			Required(),
	}
}

func (ProcessingQueue) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "created_at"),
		index.Fields("file_id"),
		// the sweeper scans processing jobs by staleness
		index.Fields("status", "updated_at"),
	}
}
