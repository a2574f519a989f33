package intent

import (
	"context"

	"go.uber.org/zap"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

// Fallback asks Primary first and Secondary whenever Primary fails or
// returns output that breaks the contract.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
	Logger    *zap.Logger
}

// Compile-time interface check.
var _ Classifier = (*Fallback)(nil)

// Classify implements Classifier.
func (f *Fallback) Classify(ctx context.Context, text string, history []chat.Message) (domain.Intent, error) {
	if f.Primary != nil {
		in, err := f.Primary.Classify(ctx, text, history)
		if err == nil {
			err = validate(&in)
		}
		if err == nil {
			record(in)
			return in, nil
		}
		if ctx.Err() != nil {
			return domain.Intent{}, ctx.Err()
		}
		f.logger().Info("primary classifier failed, using fallback", zap.Error(err))
	}

	in, err := f.Secondary.Classify(ctx, text, history)
	if err != nil {
		return domain.Intent{}, err
	}
	record(in)
	return in, nil
}

func (f *Fallback) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger.Named("intent")
}

func record(in domain.Intent) {
	observability.RecordIntent(string(in.Kind), in.Source)
}
