package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/config"
	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/internal/extract"
	"github.com/sells-group/academic-crs/internal/model"
	"github.com/sells-group/academic-crs/internal/pipeline"
	"github.com/sells-group/academic-crs/internal/reasoning"
	"github.com/sells-group/academic-crs/internal/store"
)

// appEnv holds everything the reasoning commands need.
type appEnv struct {
	Store      store.Store
	Factory    reasoning.Factory
	Models     *reasoning.ModelResolver
	Extractor  *extract.Extractor
	Controller *pipeline.Controller
	Defaults   credential.Pair
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured override store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newFactory builds the reasoning factory for the configured provider.
func newFactory(c *config.Config) (reasoning.Factory, error) {
	switch c.Reasoning.Provider {
	case "", "openrouter":
		return reasoning.NewOpenRouterFactory(c.OpenRouter, c.Jina, c.Reasoning), nil
	case "anthropic":
		return reasoning.NewAnthropicFactory(c.Anthropic), nil
	}
	return nil, eris.Errorf("unknown reasoning provider %q", c.Reasoning.Provider)
}

// defaultPair turns the configured keys into a credential pair.
func defaultPair(rc config.ReasoningConfig) credential.Pair {
	p := credential.Pair{
		Primary: credential.Credentials{ReasoningKey: rc.Key, SearchKey: rc.SearchKey},
	}
	if strings.TrimSpace(rc.BackupKey) != "" {
		p.Backup = &credential.Credentials{ReasoningKey: rc.BackupKey, SearchKey: rc.SearchKey}
	}
	return p
}

// initEnv validates config for command and wires the application. Callers
// should defer env.Close().
func initEnv(ctx context.Context, command string) (*appEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	factory, err := newFactory(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	models := reasoning.NewModelResolver(st, factory)

	return &appEnv{
		Store:      st,
		Factory:    factory,
		Models:     models,
		Extractor:  extract.NewExtractor(factory, models),
		Controller: pipeline.NewController(factory, models),
		Defaults:   defaultPair(cfg.Reasoning),
	}, nil
}

// readText returns args joined by spaces, or the contents of path ("-" for
// stdin) when path is set.
func readText(args []string, path string, stdin io.Reader) (string, error) {
	if path == "" {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return "", eris.New("no text given")
		}
		return text, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return strings.TrimSpace(string(data)), nil
}

// readProfile decodes a profile JSON file. An empty path yields an empty
// profile.
func readProfile(path string, stdin io.Reader) (model.Profile, error) {
	if path == "" {
		return model.Profile{}, nil
	}
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open profile %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	var p model.Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, eris.Wrapf(err, "decode profile %s", path)
	}
	if p == nil {
		p = model.Profile{}
	}
	return p.Compact(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
