package engine

import (
	"live-trader/internal/interfaces"
)

func New(p Params) (interfaces.Engine, error) {
	return newEngine(p)
}
