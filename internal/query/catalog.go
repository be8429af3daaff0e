// Package query runs read-only statements against the NEO store: a fixed
// catalog of named aggregate queries and a parameter-bound approach filter.
package query

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// ErrUnknownQuery is returned when a query id is not in the catalog.
var ErrUnknownQuery = errors.New("unknown query")

//go:embed catalog.yaml
var catalogYAML []byte

var validID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Query is one named catalog statement.
type Query struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	SQL   string `yaml:"sql" json:"-"`
	MySQL string `yaml:"mysql,omitempty" json:"-"`
}

// Statement returns the SQL text to run on the given gorm dialect.
func (q Query) Statement(dialect string) string {
	if dialect == "mysql" && q.MySQL != "" {
		return q.MySQL
	}
	return q.SQL
}

// Catalog is an ordered, validated set of queries keyed by id.
type Catalog struct {
	queries []Query
	byID    map[string]int
}

// LoadCatalog parses and validates the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a YAML list of queries and validates every entry.
func ParseCatalog(data []byte) (*Catalog, error) {
	var queries []Query
	if err := yaml.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(queries) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{byID: make(map[string]int, len(queries))}
	for i, q := range queries {
		if !validID.MatchString(q.ID) {
			return nil, fmt.Errorf("catalog entry %d: invalid id %q", i, q.ID)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, q.ID)
		}
		if strings.TrimSpace(q.Title) == "" {
			return nil, fmt.Errorf("query %q: title is required", q.ID)
		}
		if err := checkReadOnly(q.SQL); err != nil {
			return nil, fmt.Errorf("query %q: %w", q.ID, err)
		}
		if q.MySQL != "" {
			if err := checkReadOnly(q.MySQL); err != nil {
				return nil, fmt.Errorf("query %q mysql variant: %w", q.ID, err)
			}
		}
		c.byID[q.ID] = len(c.queries)
		c.queries = append(c.queries, q)
	}
	return c, nil
}

// checkReadOnly accepts a single SELECT or WITH statement. One trailing
// semicolon is tolerated.
func checkReadOnly(sql string) error {
	s := strings.TrimSpace(sql)
	if s == "" {
		return errors.New("sql is required")
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if strings.Contains(s, ";") {
		return errors.New("sql must be a single statement")
	}
	keyword := strings.ToUpper(strings.Fields(s)[0])
	if keyword != "SELECT" && keyword != "WITH" {
		return fmt.Errorf("sql must be read-only, got %s", keyword)
	}
	return nil
}

// Queries returns the catalog entries in definition order.
func (c *Catalog) Queries() []Query {
	out := make([]Query, len(c.queries))
	copy(out, c.queries)
	return out
}

// Get returns the query with the given id.
func (c *Catalog) Get(id string) (Query, error) {
	i, ok := c.byID[id]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownQuery, id)
	}
	return c.queries[i], nil
}

// Verify prepares every catalog statement and the filter statement against
// db, so a schema that no longer matches fails at startup.
func (c *Catalog) Verify(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get generic db handle: %w", err)
	}
	dialect := db.Dialector.Name()

	prepare := func(name, stmt string) error {
		ps, err := sqlDB.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("verify %s: %w", name, err)
		}
		return ps.Close()
	}

	for _, q := range c.queries {
		if err := prepare(q.ID, q.Statement(dialect)); err != nil {
			return err
		}
	}
	where, _, err := DefaultFilter().Build()
	if err != nil {
		return err
	}
	return prepare("approach filter", filterStatement(where))
}

// Run executes the query with the given id.
func (c *Catalog) Run(ctx context.Context, db *gorm.DB, id string) (Result, error) {
	q, err := c.Get(id)
	if err != nil {
		return Result{}, err
	}
	return execute(ctx, db, q.Statement(db.Dialector.Name()))
}
