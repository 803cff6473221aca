package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/knowstack/graph-content/pkg/graphcontent"
)

// DBTX is an interface that allows us to use either a database connection or
// a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements graphcontent.GraphStore using PostgreSQL.
//
// Schema:
//
//	CREATE TABLE content_nodes (
//	    graph_id    TEXT NOT NULL,
//	    identifier  TEXT NOT NULL,
//	    object_type TEXT NOT NULL,
//	    metadata    JSONB NOT NULL DEFAULT '{}',
//	    tags        TEXT[] NOT NULL DEFAULT '{}',
//	    PRIMARY KEY (graph_id, identifier)
//	);
//
//	CREATE TABLE content_relations (
//	    graph_id      TEXT NOT NULL,
//	    start_id      TEXT NOT NULL,
//	    relation_type TEXT NOT NULL,
//	    end_id        TEXT NOT NULL,
//	    PRIMARY KEY (graph_id, start_id, relation_type, end_id)
//	);
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("node already exists")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced node not found")
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

const nodeColumns = `graph_id, identifier, object_type, metadata, tags`

func scanNode(row pgx.Row) (*graphcontent.ContentNode, error) {
	var node graphcontent.ContentNode
	var metadata []byte
	if err := row.Scan(&node.GraphID, &node.Identifier, &node.ObjectType, &metadata, &node.Tags); err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(metadata, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode node metadata: %w", err)
	}
	node.Metadata = graphcontent.MetadataFromMap(raw)
	return &node, nil
}

func (r *Repository) loadRelations(ctx context.Context, node *graphcontent.ContentNode) error {
	query := `
        SELECT r.relation_type, r.end_id, COALESCE(n.object_type, ''), COALESCE(n.metadata->>'name', '')
        FROM content_relations r
        LEFT JOIN content_nodes n ON n.graph_id = r.graph_id AND n.identifier = r.end_id
        WHERE r.graph_id = $1 AND r.start_id = $2`

	rows, err := r.db.Query(ctx, query, node.GraphID, node.Identifier)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rel graphcontent.Relation
		if err := rows.Scan(&rel.Type, &rel.EndNodeID, &rel.EndNodeObjectType, &rel.EndNodeName); err != nil {
			return err
		}
		node.OutRelations = append(node.OutRelations, rel)
	}
	return rows.Err()
}

func (r *Repository) GetNode(ctx context.Context, graphID, id string) (*graphcontent.ContentNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM content_nodes WHERE graph_id = $1 AND identifier = $2`

	node, err := scanNode(r.db.QueryRow(ctx, query, graphID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, graphcontent.ErrNodeNotFound
		}
		return nil, r.handlePostgresError("get node", err)
	}
	if err := r.loadRelations(ctx, node); err != nil {
		return nil, r.handlePostgresError("get node relations", err)
	}
	return node, nil
}

func (r *Repository) GetNodes(ctx context.Context, graphID string, ids []string) ([]*graphcontent.ContentNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + nodeColumns + ` FROM content_nodes WHERE graph_id = $1 AND identifier = ANY($2)`

	rows, err := r.db.Query(ctx, query, graphID, ids)
	if err != nil {
		return nil, r.handlePostgresError("get nodes", err)
	}
	defer rows.Close()

	var nodes []*graphcontent.ContentNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, r.handlePostgresError("get nodes", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("get nodes", err)
	}
	for _, node := range nodes {
		if err := r.loadRelations(ctx, node); err != nil {
			return nil, r.handlePostgresError("get nodes relations", err)
		}
	}
	return nodes, nil
}

func (r *Repository) SearchNodes(ctx context.Context, graphID string, criteria graphcontent.SearchCriteria) ([]*graphcontent.ContentNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM content_nodes WHERE graph_id = $1`
	args := []interface{}{graphID}

	if len(criteria.Identifiers) > 0 {
		args = append(args, criteria.Identifiers)
		query += fmt.Sprintf(" AND identifier = ANY($%d)", len(args))
	}
	if criteria.ObjectType != "" {
		args = append(args, criteria.ObjectType)
		query += fmt.Sprintf(" AND lower(object_type) = lower($%d)", len(args))
	}
	if len(criteria.Statuses) > 0 {
		statuses := make([]string, len(criteria.Statuses))
		for i, s := range criteria.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND metadata->>'status' = ANY($%d)", len(args))
	}
	for key, value := range criteria.Metadata {
		args = append(args, key, fmt.Sprintf("%v", value))
		query += fmt.Sprintf(" AND metadata->>$%d = $%d", len(args)-1, len(args))
	}
	query += " ORDER BY identifier"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("search nodes", err)
	}
	defer rows.Close()

	var nodes []*graphcontent.ContentNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, r.handlePostgresError("search nodes", err)
		}
		if !criteria.IncludeTags {
			node.Tags = nil
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("search nodes", err)
	}
	for _, node := range nodes {
		if err := r.loadRelations(ctx, node); err != nil {
			return nil, r.handlePostgresError("search nodes relations", err)
		}
	}
	return nodes, nil
}

// ValidateNode checks the node's basic schema. Object-type metadata schemas
// are enforced at write time by database constraints.
func (r *Repository) ValidateNode(ctx context.Context, node *graphcontent.ContentNode) error {
	if node == nil {
		return &graphcontent.ValidationError{Messages: []string{"node is nil"}}
	}
	var messages []string
	if node.ObjectType == "" {
		messages = append(messages, "objectType is required")
	}
	if node.GraphID == "" {
		messages = append(messages, "graph id is required")
	}
	if len(messages) > 0 {
		return &graphcontent.ValidationError{NodeID: node.Identifier, Messages: messages}
	}
	return nil
}

func (r *Repository) CreateNode(ctx context.Context, node *graphcontent.ContentNode) (string, error) {
	if err := r.ValidateNode(ctx, node); err != nil {
		return "", err
	}

	identifier := node.Identifier
	if identifier == "" {
		identifier = "do_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	metadata, err := json.Marshal(node.Metadata.AsMap(true))
	if err != nil {
		return "", fmt.Errorf("failed to encode node metadata: %w", err)
	}
	tags := node.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
        INSERT INTO content_nodes (graph_id, identifier, object_type, metadata, tags)
        VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query, node.GraphID, identifier, node.ObjectType, metadata, tags); err != nil {
		return "", r.handlePostgresError("create node", err)
	}
	return identifier, nil
}

func (r *Repository) UpdateNode(ctx context.Context, node *graphcontent.ContentNode) error {
	metadata, err := json.Marshal(node.Metadata.AsMap(true))
	if err != nil {
		return fmt.Errorf("failed to encode node metadata: %w", err)
	}
	tags := node.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
        UPDATE content_nodes SET object_type = $3, metadata = $4, tags = $5
        WHERE graph_id = $1 AND identifier = $2`

	tag, err := r.db.Exec(ctx, query, node.GraphID, node.Identifier, node.ObjectType, metadata, tags)
	if err != nil {
		return r.handlePostgresError("update node", err)
	}
	if tag.RowsAffected() == 0 {
		return graphcontent.ErrNodeNotFound
	}
	return nil
}

func (r *Repository) CreateRelation(ctx context.Context, graphID, startID string, relation graphcontent.RelationType, endID string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_nodes WHERE graph_id = $1 AND identifier = $2)`,
		graphID, startID).Scan(&exists)
	if err != nil {
		return r.handlePostgresError("create relation", err)
	}
	if !exists {
		return graphcontent.ErrNodeNotFound
	}

	query := `
        INSERT INTO content_relations (graph_id, start_id, relation_type, end_id)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, graphID, startID, string(relation), endID); err != nil {
		return r.handlePostgresError("create relation", err)
	}
	return nil
}
