package classifier

import (
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const (
	StrategyRule   = "rule"
	StrategyModel  = "model"
	StrategyHybrid = "hybrid"
)

// Strategies lists the accepted strategy names, default first.
var Strategies = []string{StrategyRule, StrategyModel, StrategyHybrid}

// Classifier assigns a severity label to an encoded row. Implementations
// are read-only after construction and safe for concurrent use.
type Classifier interface {
	Predict(types.FeatureVector) types.Severity
}

// Rule discretizes the CVSS base score. It cannot say anything about a row
// without a score.
type Rule struct{}

func (Rule) Predict(fv types.FeatureVector) types.Severity {
	if !fv.HasScore {
		return types.SeverityUnknown
	}
	return types.SeverityFromScore(&fv.Score)
}

// Hybrid trusts the score when there is one and falls back to a learned
// model otherwise.
type Hybrid struct {
	Model Classifier
}

func (h Hybrid) Predict(fv types.FeatureVector) types.Severity {
	if s := (Rule{}).Predict(fv); s != types.SeverityUnknown {
		return s
	}
	return h.Model.Predict(fv)
}

// New returns the classifier for strategy. The model strategies need a
// loaded bundle.
func New(strategy string, bundle *Bundle) (Classifier, error) {
	switch strategy {
	case StrategyRule, "":
		return Rule{}, nil
	case StrategyModel, StrategyHybrid:
		if bundle == nil || bundle.Forest == nil {
			return nil, xerrors.Errorf("strategy %q: %w", strategy, ErrModelNotFound)
		}
		if strategy == StrategyModel {
			return bundle.Forest, nil
		}
		return Hybrid{Model: bundle.Forest}, nil
	default:
		return nil, xerrors.Errorf("unknown classifier strategy: %s", strategy)
	}
}
