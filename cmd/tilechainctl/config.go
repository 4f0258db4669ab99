package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tilechain/internal/model"
	"tilechain/internal/platform"
	"tilechain/pkg/tilechain"
)

func loadRunRequestFromConfig(path string) (tilechain.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tilechain.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return tilechain.RunRequest{}, err
	}

	var req tilechain.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asInt(raw["width"]); ok {
		req.Width = v
	}
	if v, ok := asInt(raw["height"]); ok {
		req.Height = v
	}
	if inv, ok := raw["inventory"].(map[string]any); ok {
		req.Inventory = &model.Inventory{}
		if v, ok := asInt(inv["a"]); ok {
			req.Inventory.A = v
		}
		if v, ok := asInt(inv["b"]); ok {
			req.Inventory.B = v
		}
		if v, ok := asInt(inv["c"]); ok {
			req.Inventory.C = v
		}
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = v
	}
	if v, ok := asFloat64(raw["elite_fraction"]); ok {
		req.EliteFraction = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideFromFlags(req *tilechain.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "width":
			req.Width = v.(int)
		case "height":
			req.Height = v.(int)
		case "a", "b", "c":
			if req.Inventory == nil {
				inv := model.DefaultInventory()
				req.Inventory = &inv
			}
			switch name {
			case "a":
				req.Inventory.A = v.(int)
			case "b":
				req.Inventory.B = v.(int)
			case "c":
				req.Inventory.C = v.(int)
			}
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "elite":
			req.EliteFraction = v.(float64)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

// parseIntList accepts "from:to:step" or a comma separated list.
func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty list")
	}
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		bounds := make([]int, 3)
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", s, err)
			}
			bounds[i] = v
		}
		out := platform.Range(bounds[0], bounds[1], bounds[2])
		if len(out) == 0 {
			return nil, fmt.Errorf("range %q is empty", s)
		}
		return out, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
