package banner

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

// Input is everything a banner condition can observe.
type Input struct {
	Account      account.State
	Restrictions policy.RestrictionConfig
	Usage        usage.Counts
	Engagement   engagement.Snapshot
	// Assignments maps test id to variant id.
	Assignments map[string]string
}

// Vars flattens the input into CEL activation variables.
func (in Input) Vars() map[string]interface{} {
	class := in.Account.Class()
	assignments := make(map[string]interface{}, len(in.Assignments))
	for k, v := range in.Assignments {
		assignments[k] = v
	}
	return map[string]interface{}{
		"account": map[string]interface{}{
			"class":      string(class),
			"label":      in.Account.Label(),
			"guest":      in.Account.IsGuestOrDemo(),
			"demo":       in.Account.IsDemo,
			"subscribed": in.Account.IsSubscribed,
			"admin":      class == account.ClassAdmin,
		},
		"restrictions": map[string]interface{}{
			"category_limit":          int(in.Restrictions.CategoryLimit),
			"transaction_limit":       int(in.Restrictions.TransactionLimit),
			"export_allowed":          in.Restrictions.ExportAllowed,
			"analytics_allowed":       in.Restrictions.AnalyticsAllowed,
			"sync_allowed":            in.Restrictions.SyncAllowed,
			"time_based_restrictions": in.Restrictions.TimeBasedRestrictions,
		},
		"usage": map[string]interface{}{
			"categories":                in.Usage.Categories,
			"transactions":              in.Usage.Transactions,
			"category_limit_reached":    in.Restrictions.CategoryLimit.Reached(in.Usage.Categories),
			"transaction_limit_reached": in.Restrictions.TransactionLimit.Reached(in.Usage.Transactions),
		},
		"engagement": map[string]interface{}{
			"active":       in.Engagement.Active,
			"stage":        in.Engagement.Stage.String(),
			"level":        int(in.Engagement.Stage),
			"time_spent":   in.Engagement.TimeSpentSeconds,
			"interactions": in.Engagement.InteractionCount,
		},
		"experiments": assignments,
	}
}

// Conditions compiles and caches CEL display conditions.
type Conditions struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewConditions creates the CEL environment for banner conditions.
func NewConditions() (*Conditions, error) {
	env, err := cel.NewEnv(
		cel.Variable("account", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("restrictions", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("usage", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("engagement", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("experiments", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Conditions{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile checks expr and caches its program. The expression must yield a bool.
func (c *Conditions) Compile(expr string) error {
	_, err := c.program(expr)
	return err
}

// Eval evaluates expr. An empty expression is true.
func (c *Conditions) Eval(expr string, vars map[string]interface{}) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to bool", expr)
	}
	return val, nil
}

func (c *Conditions) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.programs[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.programs[expr]; hit {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("condition %q must be boolean, got %s", expr, out)
	}
	prg, err := c.env.Program(ast, cel.CostLimit(10000), cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	c.programs[expr] = prg
	return prg, nil
}
