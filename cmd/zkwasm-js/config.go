package main

import (
	"fmt"
	"math"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm"
)

var configKeys = []string{"mode", "poolSize", "nodeUrl", "logLevel"}

// entryPoints names every function published on the zkwasm object.
func entryPoints() []string {
	names := []string{"invoke"}
	for _, op := range zkwasm.Ops() {
		names = append(names, string(op))
	}
	return names
}

// hostConfig builds the load configuration from the zkwasmConfig values.
func hostConfig(values map[string]any) (zkwasm.Config, error) {
	cfg := zkwasm.Defaults()
	for key, v := range values {
		var err error
		switch key {
		case "mode":
			var s string
			if s, err = stringValue(key, v); err == nil {
				cfg.Mode, err = zkwasm.ParseMode(s)
			}
		case "poolSize":
			f, ok := v.(float64)
			if !ok || f != math.Trunc(f) {
				err = fmt.Errorf("zkwasmConfig.poolSize must be an integer")
			}
			cfg.PoolSize = int(f)
		case "nodeUrl":
			cfg.NodeURL, err = stringValue(key, v)
		case "logLevel":
			cfg.LogLevel, err = stringValue(key, v)
		default:
			err = fmt.Errorf("zkwasmConfig: unknown field %q", key)
		}
		if err != nil {
			return cfg, invalidConfig(err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, invalidConfig(err)
	}
	return cfg, nil
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("zkwasmConfig.%s must be a string", key)
	}
	return s, nil
}

func invalidConfig(err error) error {
	if zkwasm.KindOf(err) == zkwasm.KindInvalidInput {
		return err
	}
	return &zkwasm.Error{Kind: zkwasm.KindInvalidInput, Op: "load", Err: err}
}
