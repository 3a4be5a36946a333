package compiler

// Precedence is an operator binding strength, lowest first.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(p *Parser)

// parseRule says how a token behaves at the start of an expression (prefix)
// and between two operands (infix).
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is filled in init to break the initialization cycle between the
// table and the parse functions that consult it.
var rules map[TokenType]parseRule

func init() {
	rules = map[TokenType]parseRule{
		TokenLeftParen: {(*Parser).grouping, nil, PrecNone},
		TokenMinus:     {(*Parser).unary, (*Parser).binary, PrecTerm},
		TokenPlus:      {nil, (*Parser).binary, PrecTerm},
		TokenSlash:     {nil, (*Parser).binary, PrecFactor},
		TokenStar:      {nil, (*Parser).binary, PrecFactor},
		TokenNumber:    {(*Parser).number, nil, PrecNone},
	}
}

// getRule returns the rule for t; tokens without an entry have no rule.
func getRule(t TokenType) parseRule {
	return rules[t]
}
