// Package export copies the knowledge graph into external graph databases.
package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/graph"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 500

const (
	constraintCypher = `CREATE CONSTRAINT knowledge_id IF NOT EXISTS FOR (n:Knowledge) REQUIRE n.id IS UNIQUE`

	nodeCypher = `
		UNWIND $rows AS row
		MERGE (n:Knowledge {id: row.id})
		SET n += row.props`

	edgeCypher = `
		UNWIND $rows AS row
		MATCH (a:Knowledge {id: row.source})
		MATCH (b:Knowledge {id: row.target})
		MERGE (a)-[r:RELATED {relation_type: row.relation_type}]->(b)
		SET r += row.props`
)

// Neo4jConfig holds Neo4j connection configuration.
type Neo4jConfig struct {
	URI       string `json:"uri" yaml:"uri"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	Database  string `json:"database" yaml:"database"`
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
}

// Summary reports what an export wrote.
type Summary struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// writer runs one write statement.
type writer interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
	Close(ctx context.Context) error
}

// Neo4jExporter merges graph nodes as (:Knowledge {id}) and edges as
// [:RELATED {relation_type}], so repeated exports are idempotent.
type Neo4jExporter struct {
	w         writer
	batchSize int
	logger    *zap.Logger
}

// NewNeo4j connects to Neo4j and verifies connectivity.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = "neo4j"
	}
	return newExporter(&driverWriter{driver: driver, database: db}, cfg.BatchSize, logger), nil
}

func newExporter(w writer, batchSize int, logger *zap.Logger) *Neo4jExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Neo4jExporter{w: w, batchSize: batchSize, logger: logger}
}

// Close releases the driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.w.Close(ctx)
}

// Export writes every node, then every edge, of g.
func (e *Neo4jExporter) Export(ctx context.Context, g *graph.Graph) (Summary, error) {
	var sum Summary
	if err := e.w.Write(ctx, constraintCypher, nil); err != nil {
		return sum, fmt.Errorf("creating constraint: %w", err)
	}

	nodes := NodeRows(g)
	for _, batch := range batches(nodes, e.batchSize) {
		if err := e.w.Write(ctx, nodeCypher, map[string]any{"rows": batch}); err != nil {
			return sum, fmt.Errorf("writing nodes: %w", err)
		}
		sum.Nodes += len(batch)
	}

	edges := EdgeRows(g)
	for _, batch := range batches(edges, e.batchSize) {
		if err := e.w.Write(ctx, edgeCypher, map[string]any{"rows": batch}); err != nil {
			return sum, fmt.Errorf("writing edges: %w", err)
		}
		sum.Edges += len(batch)
	}

	e.logger.Info("exported graph to neo4j", zap.Int("nodes", sum.Nodes), zap.Int("edges", sum.Edges))
	return sum, nil
}

// NodeRows converts nodes into UNWIND rows {id, props}.
func NodeRows(g *graph.Graph) []map[string]any {
	rows := make([]map[string]any, 0, g.NodeCount())
	for _, id := range g.NodeIDs() {
		attrs, _ := g.Node(id)
		rows = append(rows, map[string]any{"id": id, "props": Flatten(attrs)})
	}
	return rows
}

// EdgeRows converts edges into UNWIND rows {source, target, relation_type, props}.
func EdgeRows(g *graph.Graph) []map[string]any {
	edges := g.Edges()
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rel := e.Attrs.String(graph.AttrRelationType)
		if rel == "" {
			rel = "related_to"
		}
		props := Flatten(e.Attrs)
		delete(props, graph.AttrRelationType)
		rows = append(rows, map[string]any{
			"source":        e.Source,
			"target":        e.Target,
			"relation_type": rel,
			"props":         props,
		})
	}
	return rows
}

// Flatten keeps the attributes Neo4j can store as properties. Maps and
// slices are stored as JSON strings; nil values are dropped.
func Flatten(attrs graph.Attrs) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case nil:
		case string, bool, int, int64, float64:
			out[k] = val
		case float32:
			out[k] = float64(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func batches(rows []map[string]any, size int) [][]map[string]any {
	var out [][]map[string]any
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

type driverWriter struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverWriter) Write(ctx context.Context, cypher string, params map[string]any) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (d *driverWriter) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
