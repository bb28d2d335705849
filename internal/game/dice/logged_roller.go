package dice

import "go.uber.org/zap"

// Roller binds a Source to the configured battle expression and logs every roll
// at debug level with expression, dice values, modifier, and total.
type Roller struct {
	src    Source
	expr   Expression
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls expr with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil; expr must come from Parse.
func NewLoggedRoller(src Source, expr Expression, logger *zap.Logger) *Roller {
	return &Roller{src: src, expr: expr, logger: logger}
}

// Roll evaluates the bound expression and logs the result.
//
// Postcondition: result logged at debug level.
func (r *Roller) Roll() RollResult {
	result := Roll(r.expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// Source returns the underlying randomness source, used for deck shuffles.
func (r *Roller) Source() Source {
	return r.src
}
