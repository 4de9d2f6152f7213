package schemas

import (
	"embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var contractFiles embed.FS

// Contract names a schema that model output must satisfy
type Contract string

const (
	// ContractNormalizedResume is produced by ingestion
	ContractNormalizedResume Contract = "normalized_resume"
	// ContractOptimizedResume is produced by the rewrite engine
	ContractOptimizedResume Contract = "optimized_resume"
	// ContractRationale is produced by the explanation engine
	ContractRationale Contract = "rationale"
)

// Contracts lists every known contract.
func Contracts() []Contract {
	return []Contract{ContractNormalizedResume, ContractOptimizedResume, ContractRationale}
}

// LookupContract resolves a contract by name.
func LookupContract(name string) (Contract, bool) {
	for _, c := range Contracts() {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

func (c Contract) filename() string {
	return string(c) + ".schema.json"
}

var (
	compiled   = make(map[Contract]*gojsonschema.Schema)
	compiledMu sync.RWMutex
)

// Source returns the raw JSON Schema text of a contract, for embedding in prompts.
func Source(c Contract) (string, error) {
	data, err := contractFiles.ReadFile(c.filename())
	if err != nil {
		return "", &SchemaLoadError{Path: c.filename(), Message: "unknown contract", Cause: err}
	}
	return string(data), nil
}

// MustSource is Source that panics on unknown contracts.
func MustSource(c Contract) string {
	s, err := Source(c)
	if err != nil {
		panic(fmt.Sprintf("failed to load contract: %v", err))
	}
	return s
}

// Validate checks jsonContent against a named contract. Compiled schemas are cached.
func Validate(c Contract, jsonContent string) error {
	schema, err := load(c)
	if err != nil {
		return err
	}
	return validateWith(schema, jsonContent)
}

func load(c Contract) (*gojsonschema.Schema, error) {
	compiledMu.RLock()
	schema, ok := compiled[c]
	compiledMu.RUnlock()
	if ok {
		return schema, nil
	}

	src, err := Source(c)
	if err != nil {
		return nil, err
	}
	schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, &SchemaLoadError{Path: c.filename(), Message: "schema compilation failed", Cause: err}
	}

	compiledMu.Lock()
	compiled[c] = schema
	compiledMu.Unlock()
	return schema, nil
}
