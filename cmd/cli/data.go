package cli

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	tke "github.com/TNO/knowledge-engine"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// answerData is the file served by the answer command:
//
//	pattern: "?a <http://example.org/relatedTo> ?b ."
//	bindings:
//	  - a: <http://example.org/Maths>
//	    b: <http://example.org/Science>
type answerData struct {
	Pattern  string            `yaml:"pattern"`
	Bindings []types.Binding   `yaml:"bindings"`
	Prefixes map[string]string `yaml:"prefixes"`
}

func loadAnswerData(path string) (*answerData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer data: %w", err)
	}
	var data answerData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse answer data %s: %w", path, err)
	}
	for i, b := range data.Bindings {
		if len(b) == 0 {
			return nil, fmt.Errorf("answer data %s: binding %d is empty", path, i)
		}
	}
	return &data, nil
}

// answerFrom answers with the bindings of data that match the request. An
// empty request matches everything.
func answerFrom(data types.BindingSet) tke.Handler {
	return func(_ context.Context, req *types.HandleRequest) types.BindingSet {
		query := req.BindingSet
		if len(query) == 0 {
			query = types.BindingSet{{}}
		}
		return data.Match(query)
	}
}
