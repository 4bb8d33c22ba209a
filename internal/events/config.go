package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the sinks file at path. ${VAR} references are expanded
// from the environment so secrets and broker addresses can stay out of the
// file. An empty path yields the zero config.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c); err != nil {
		return c, fmt.Errorf("events config %s: %w", path, err)
	}
	return c, nil
}

// BuildSinks creates every enabled sink, each limited to its events filter.
// Sinks that fail to initialize are skipped and reported in the joined error.
func (c Config) BuildSinks() ([]Sink, error) {
	var (
		sinks []Sink
		errs  []error
	)
	if wh := NewWebhookSink(c.Sinks.Webhook); wh != nil {
		sinks = append(sinks, Only(wh, c.Sinks.Webhook.Events...))
	}
	if rs, err := NewRedisSink(c.Sinks.Redis); err != nil {
		errs = append(errs, fmt.Errorf("redis sink: %w", err))
	} else if rs != nil {
		sinks = append(sinks, Only(rs, c.Sinks.Redis.Events...))
	}
	if ks, err := NewKafkaSink(c.Sinks.Kafka); err != nil {
		errs = append(errs, fmt.Errorf("kafka sink: %w", err))
	} else if ks != nil {
		sinks = append(sinks, Only(ks, c.Sinks.Kafka.Events...))
	}
	return sinks, errors.Join(errs...)
}

type filtered struct {
	Sink
	patterns []string
}

// Only restricts s to events whose name matches one of patterns, in
// path.Match syntax ("sync.*"). Without patterns s receives every event.
func Only(s Sink, patterns ...string) Sink {
	if len(patterns) == 0 {
		return s
	}
	return &filtered{Sink: s, patterns: patterns}
}

// Wants reports whether the event name passes the filter.
func (f *filtered) Wants(name string) bool {
	for _, p := range f.patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (f *filtered) Emit(ctx context.Context, e Event) error {
	if !f.Wants(e.Name) {
		return nil
	}
	return f.Sink.Emit(ctx, e)
}
