// Package rules holds the mechanical policy choices of the game that are
// genre convention rather than hard law: the win thresholds and the vote
// tie-break. They are expressions compiled once at startup so a deployment
// can run house rules without an engine change.
package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Outcome is the verdict of a win-condition check.
type Outcome string

const (
	OutcomeNone       Outcome = "none"
	OutcomeMafiaWin   Outcome = "mafia_win"
	OutcomeVillageWin Outcome = "village_win"
)

// TieBreak selects the vote tie policy.
type TieBreak string

const (
	// TieBreakNoElimination spares everyone on a tied plurality.
	TieBreakNoElimination TieBreak = "no_elimination"
	// TieBreakLowestID eliminates the tied candidate with the lowest id.
	TieBreakLowestID TieBreak = "lowest_id"
)

// Config carries the raw policy expressions. Conditions see three variables:
// alive_mafia, alive_village (living non-mafia) and day.
type Config struct {
	MafiaWin   string
	VillageWin string
	TieBreak   string
}

// DefaultConfig is the conventional rule set: mafia wins at parity, the
// village wins when the last mafioso falls, ties eliminate no one.
func DefaultConfig() Config {
	return Config{
		MafiaWin:   "alive_mafia >= alive_village",
		VillageWin: "alive_mafia == 0",
		TieBreak:   string(TieBreakNoElimination),
	}
}

type conditionEnv struct {
	AliveMafia   int `expr:"alive_mafia"`
	AliveVillage int `expr:"alive_village"`
	Day          int `expr:"day"`
}

// Policy is a compiled rule set.
type Policy struct {
	mafiaWin   *vm.Program
	villageWin *vm.Program
	tieBreak   TieBreak
}

// New compiles the policy expressions. Invalid expressions fail here, never
// mid-game.
func New(cfg Config) (*Policy, error) {
	mafiaWin, err := compileCondition(cfg.MafiaWin)
	if err != nil {
		return nil, fmt.Errorf("mafia win condition: %w", err)
	}
	villageWin, err := compileCondition(cfg.VillageWin)
	if err != nil {
		return nil, fmt.Errorf("village win condition: %w", err)
	}

	tb := TieBreak(cfg.TieBreak)
	switch tb {
	case TieBreakNoElimination, TieBreakLowestID:
	case "":
		tb = TieBreakNoElimination
	default:
		return nil, fmt.Errorf("unknown tie break policy %q", cfg.TieBreak)
	}

	return &Policy{mafiaWin: mafiaWin, villageWin: villageWin, tieBreak: tb}, nil
}

// MustDefault builds the default policy; the defaults always compile.
func MustDefault() *Policy {
	p, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return p
}

func compileCondition(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(conditionEnv{}), expr.AsBool())
}

// TieBreak returns the configured vote tie policy.
func (p *Policy) TieBreak() TieBreak {
	return p.tieBreak
}

// Decide evaluates the win conditions against the living counts. The village
// condition is checked first: wiping out the mafia is a village win even if a
// house-rule mafia condition would also hold.
func (p *Policy) Decide(aliveMafia, aliveVillage, day int) (Outcome, error) {
	env := conditionEnv{AliveMafia: aliveMafia, AliveVillage: aliveVillage, Day: day}

	won, err := runCondition(p.villageWin, env)
	if err != nil {
		return OutcomeNone, fmt.Errorf("village win condition: %w", err)
	}
	if won {
		return OutcomeVillageWin, nil
	}

	won, err = runCondition(p.mafiaWin, env)
	if err != nil {
		return OutcomeNone, fmt.Errorf("mafia win condition: %w", err)
	}
	if won {
		return OutcomeMafiaWin, nil
	}

	return OutcomeNone, nil
}

func runCondition(program *vm.Program, env conditionEnv) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return result, nil
}
