// Package core provides an API to include and use the GraphJin Neo4j compiler
// with your own code. It turns GraphQL operations into parameterized Cypher
// statements ready to be run with any Neo4j driver.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/cypher"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

type contextkey int

// Constants to set values on the context passed to the Compile function
const (
	// User ID value for authenticated users, also used as the jwt sub claim
	// when no claims are set
	UserIDKey contextkey = iota

	// The jwt claims (map[string]any) auth rules read $jwt values from
	UserClaimsKey

	// The roles ([]string) of the current user
	UserRolesKey
)

// ErrForbidden is the message Neo4j raises when an authorization check
// compiled into a statement fails
var ErrForbidden = errors.New(cypher.ForbiddenMessage)

// graphjinEngine is an instance of the compiler, it holds the schema and
// the compilers built from it
type graphjinEngine struct {
	conf           *Config
	log            *zap.Logger
	fs             afero.Fs
	trace          Tracer
	schemaData     []byte
	schemaMod      time.Time
	schema         *sdata.Schema
	qcodeCompiler  *qcode.Compiler
	cypherCompiler *cypher.Compiler
	cache          Cache
	prod           bool
	opts           []Option
	done           chan bool
}

type GraphJin struct {
	atomic.Value
	done chan bool
}

type Option func(*graphjinEngine) error

// NewGraphJin creates the GraphJin struct, this involves loading the schema
// file and building the compilers from it
func NewGraphJin(conf *Config, options ...Option) (g *GraphJin, err error) {
	fs, err := getFS(conf)
	if err != nil {
		return
	}

	g = &GraphJin{done: make(chan bool)}
	if err = g.newGraphJin(conf, fs, options...); err != nil {
		return
	}

	if err = g.initSchemaWatcher(); err != nil {
		return
	}
	return
}

// NewGraphJinWithFS is the same as NewGraphJin but reads the schema file
// from the provided filesystem
func NewGraphJinWithFS(conf *Config, fs afero.Fs, options ...Option) (g *GraphJin, err error) {
	g = &GraphJin{done: make(chan bool)}
	if err = g.newGraphJin(conf, fs, options...); err != nil {
		return
	}

	if err = g.initSchemaWatcher(); err != nil {
		return
	}
	return
}

func (g *GraphJin) newGraphJin(conf *Config, fs afero.Fs, options ...Option) (err error) {
	if conf == nil {
		conf = &Config{Debug: true}
	}

	gj := &graphjinEngine{
		conf:  conf,
		log:   zap.NewNop(),
		fs:    fs,
		trace: newTracer(),
		prod:  conf.Production,
		opts:  options,
		done:  g.done,
	}

	// ordering of these initializer matter, do not re-order!

	if !conf.DisableCache {
		if err = gj.initCache(); err != nil {
			return
		}
	}

	for _, op := range options {
		if err = op(gj); err != nil {
			return
		}
	}

	if err = gj.initSchema(); err != nil {
		return
	}

	if err = gj.initCompilers(); err != nil {
		return
	}

	g.Store(gj)
	return
}

// OptionSetFS sets the file system the schema file is read from
func OptionSetFS(fs afero.Fs) Option {
	return func(s *graphjinEngine) error {
		s.fs = fs
		return nil
	}
}

// OptionSetTrace sets the tracer to be used by GraphJin
func OptionSetTrace(trace Tracer) Option {
	return func(s *graphjinEngine) error {
		s.trace = trace
		return nil
	}
}

// OptionSetLogger sets the logger, the default discards everything
func OptionSetLogger(log *zap.Logger) Option {
	return func(s *graphjinEngine) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		s.log = log
		return nil
	}
}

// OptionSetSchema sets the YAML schema directly, the schema file in the
// config is then ignored and not watched
func OptionSetSchema(schema []byte) Option {
	return func(s *graphjinEngine) error {
		s.schemaData = schema
		return nil
	}
}

func (gj *graphjinEngine) initSchema() (err error) {
	if len(gj.schemaData) != 0 {
		gj.schema, err = sdata.Load(gj.schemaData)
		return
	}

	if gj.conf.SchemaFile == "" {
		return errors.New("no schema: set schema_file in the config or use OptionSetSchema")
	}

	if gj.schemaMod, err = gj.schemaModTime(); err != nil {
		return
	}

	if gj.schema, err = sdata.LoadFile(gj.fs, gj.conf.SchemaFile); err != nil {
		return fmt.Errorf("%s: %w", gj.conf.SchemaFile, err)
	}
	return
}

func (gj *graphjinEngine) initCompilers() (err error) {
	gj.qcodeCompiler = qcode.NewCompiler(gj.schema)
	gj.cypherCompiler = cypher.NewCompiler(gj.schema)
	return
}

type Error struct {
	Message string `json:"message"`
}

// Statement is one compiled Cypher statement. Each root field of a GraphQL
// operation compiles to its own statement.
type Statement struct {
	Name   string         `json:"name"`
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

// Pretty returns the query indented by block depth
func (s Statement) Pretty() string {
	return prettify(s.Query)
}

// Result struct contains the output of the Compile function this includes
// the compiled statements and any error information
type Result struct {
	operation  qcode.QType
	name       string
	cacheHit   bool
	Vars       json.RawMessage `json:"-"`
	Statements []Statement     `json:"statements,omitempty"`
	Errors     []Error         `json:"errors,omitempty"`
}

// RequestConfig is used to pass request specific values to the Compile
// function. Values set here take precedence over those on the context.
type RequestConfig struct {
	// Pass additional variables, request variables take precedence
	Vars map[string]any

	// Whether the current user is authenticated
	Authenticated bool

	// The jwt claims auth rules read $jwt values from
	JWT map[string]any

	// The roles of the current user
	Roles []string
}

// Compile function is our main function it takes a GraphQL query and
// compiles it to Cypher, one statement per root field.
//
// Identical requests (query, variables and auth values) are served from the
// cache unless it is disabled.
func (g *GraphJin) Compile(c context.Context,
	query string,
	vars json.RawMessage,
	rc *RequestConfig,
) (res *Result, err error) {
	gj := g.Load().(*graphjinEngine)

	c1, span := gj.spanStart(c, "GraphJin Compile")
	defer span.End()

	r := graphqlReq{query: query, vars: vars, rc: rc}

	if res, err = gj.compileWithResult(c1, r); err != nil {
		span.Error(err)
	}

	if span.IsRecording() {
		span.SetAttributesString(
			StringAttr{"query.operation", res.OperationName()},
			StringAttr{"query.name", res.QueryName()},
			StringAttr{"query.cache_hit", fmt.Sprint(res.CacheHit())})
	}
	return
}

// CompileByName is the same as Compile but compiles the operation named
// name when the query holds more than one operation
func (g *GraphJin) CompileByName(c context.Context,
	query string,
	name string,
	vars json.RawMessage,
	rc *RequestConfig,
) (res *Result, err error) {
	gj := g.Load().(*graphjinEngine)

	c1, span := gj.spanStart(c, "GraphJin Compile By Name")
	defer span.End()

	r := graphqlReq{query: query, name: name, vars: vars, rc: rc}

	if res, err = gj.compileWithResult(c1, r); err != nil {
		span.Error(err)
	}
	return
}

// BatchRequest is a single request of a batch
type BatchRequest struct {
	Query  string          `json:"query"`
	Name   string          `json:"operationName,omitempty"`
	Vars   json.RawMessage `json:"variables,omitempty"`
	Config *RequestConfig  `json:"-"`
}

// CompileBatch compiles independent requests concurrently. The results are
// in request order, the first error cancels the remaining requests.
func (g *GraphJin) CompileBatch(c context.Context, reqs []BatchRequest) ([]*Result, error) {
	gj := g.Load().(*graphjinEngine)

	c1, span := gj.spanStart(c, "GraphJin Compile Batch")
	defer span.End()

	res := make([]*Result, len(reqs))
	eg, c2 := errgroup.WithContext(c1)

	for i, req := range reqs {
		eg.Go(func() (err error) {
			if err = c2.Err(); err != nil {
				return
			}
			r := graphqlReq{query: req.Query, name: req.Name, vars: req.Vars, rc: req.Config}
			if res[i], err = gj.compileWithResult(c2, r); err != nil {
				err = fmt.Errorf("request %d: %w", i, err)
			}
			return
		})
	}

	if err := eg.Wait(); err != nil {
		span.Error(err)
		return res, err
	}
	return res, nil
}

type graphqlReq struct {
	query string
	name  string
	vars  json.RawMessage
	rc    *RequestConfig
}

func (gj *graphjinEngine) compileWithResult(c context.Context, r graphqlReq) (res *Result, err error) {
	res = &Result{Vars: r.vars}

	s, err := newGState(c, gj, r)
	if err != nil {
		res.Errors = newError(err)
		return
	}

	err = s.compile()

	res.operation = s.op
	res.name = s.name
	res.cacheHit = s.cacheHit
	res.Statements = s.stmts

	if err != nil {
		res.Errors = newError(err)
		return
	}

	s.debugLogStmt()
	return
}

// Reload re-reads the schema and rebuilds the compilers. The cache is
// dropped along with the old engine.
func (g *GraphJin) Reload() error {
	gj := g.Load().(*graphjinEngine)
	return g.newGraphJin(gj.conf, gj.fs, gj.opts...)
}

// IsProd return true for production mode or false for development mode
func (g *GraphJin) IsProd() bool {
	gj := g.Load().(*graphjinEngine)
	return gj.prod
}

// Close stops the schema watcher
func (g *GraphJin) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// getFS returns the file system the schema file is read from
func getFS(conf *Config) (fs afero.Fs, err error) {
	if conf != nil && conf.ConfigPath != "" {
		fs = afero.NewBasePathFs(afero.NewOsFs(), conf.ConfigPath)
		return
	}

	v, err := os.Getwd()
	if err != nil {
		return
	}

	fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(v, "config"))
	return
}

// newError creates a new error list
func newError(err error) (errList []Error) {
	errList = []Error{{Message: err.Error()}}
	return
}
