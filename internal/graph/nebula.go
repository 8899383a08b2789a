package graph

import (
	"context"
	"fmt"
	"strings"

	nebula "github.com/vesoft-inc/nebula-go/v3"

	"deepgraph/internal/logging"
)

// NebulaConfig holds connection parameters for a NebulaGraph deployment.
type NebulaConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Space    string
}

type nebulaRunner struct {
	pool   *nebula.ConnectionPool
	config NebulaConfig
	logger logging.Logger
}

type nebulaLogAdapter struct {
	logger logging.Logger
}

func (a nebulaLogAdapter) Info(msg string)  { a.logger.Debug("nebula: %s", msg) }
func (a nebulaLogAdapter) Warn(msg string)  { a.logger.Warn("nebula: %s", msg) }
func (a nebulaLogAdapter) Error(msg string) { a.logger.Error("nebula: %s", msg) }
func (a nebulaLogAdapter) Fatal(msg string) { a.logger.Error("nebula: %s", msg) }

// NewNebula connects to a NebulaGraph cluster and returns a Runner scoped to
// the configured space.
func NewNebula(cfg NebulaConfig, logger logging.Logger) (Runner, error) {
	logger = logging.OrNop(logger)
	hostAddress := nebula.HostAddress{Host: cfg.Host, Port: cfg.Port}
	poolConfig := nebula.GetDefaultConf()
	pool, err := nebula.NewConnectionPool([]nebula.HostAddress{hostAddress}, poolConfig, nebulaLogAdapter{logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create nebula pool: %w", err)
	}
	return &nebulaRunner{pool: pool, config: cfg, logger: logger}, nil
}

func (r *nebulaRunner) Run(ctx context.Context, query string) (string, error) {
	session, err := r.pool.GetSession(r.config.User, r.config.Password)
	if err != nil {
		return "", fmt.Errorf("open nebula session: %w", err)
	}
	defer session.Release()

	stmt := CleanQuery(query)
	if r.config.Space != "" {
		stmt = fmt.Sprintf("USE %s; %s", r.config.Space, stmt)
	}

	type result struct {
		set *nebula.ResultSet
		err error
	}
	done := make(chan result, 1)
	go func() {
		set, err := session.Execute(stmt)
		done <- result{set: set, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("execute query: %w", res.err)
		}
		if !res.set.IsSucceed() {
			return "", fmt.Errorf("query failed: %s", res.set.GetErrorMsg())
		}
		return renderResultSet(res.set), nil
	}
}

func (r *nebulaRunner) Close() error {
	r.pool.Close()
	return nil
}

func renderResultSet(set *nebula.ResultSet) string {
	table := set.AsStringTable()
	if len(table) == 0 {
		return "(empty result)"
	}
	var b strings.Builder
	for _, row := range table {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// CleanQuery strips markdown code fences the model wraps around generated
// statements, leaving the bare query text.
func CleanQuery(query string) string {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line, e.g. ```ngql.
		first := strings.TrimSpace(trimmed[:idx])
		if first != "" && !strings.ContainsAny(first, " ;(") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
