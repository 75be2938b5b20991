package encoder

import (
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

// Encoders holds the fitted vendor and product vocabularies. They are
// produced once and versioned with the model they were trained for.
type Encoders struct {
	Vendor  Vocabulary `json:"vendor"`
	Product Vocabulary `json:"product"`
}

// FitRecords fits both vocabularies over the reference table.
func FitRecords(records []types.VulnerabilityRecord) Encoders {
	return Encoders{
		Vendor: Fit(lo.Map(records, func(r types.VulnerabilityRecord, _ int) string {
			return r.Vendor
		}), types.UnknownVendor),
		Product: Fit(lo.Map(records, func(r types.VulnerabilityRecord, _ int) string {
			return r.Product
		}), types.UnknownProduct),
	}
}

func (e Encoders) Save(fs afero.Fs, path string) error {
	if err := utils.NewFs(fs).WriteJSON(path, e); err != nil {
		return xerrors.Errorf("unable to save encoders: %w", err)
	}
	return nil
}

// LoadEncoders reads encoders saved by Save.
func LoadEncoders(fs afero.Fs, path string) (Encoders, error) {
	var e Encoders
	if err := utils.NewFs(fs).ReadJSON(path, &e); err != nil {
		return Encoders{}, xerrors.Errorf("unable to load encoders: %w", err)
	}
	if e.Vendor.Unknown == "" {
		e.Vendor.Unknown = types.UnknownVendor
	}
	if e.Product.Unknown == "" {
		e.Product.Unknown = types.UnknownProduct
	}
	e.Vendor = newVocabulary(e.Vendor.Classes, e.Vendor.Unknown)
	e.Product = newVocabulary(e.Product.Classes, e.Product.Unknown)
	return e, nil
}

// Input is what gets encoded for one row.
type Input struct {
	Vendor      string
	Product     string
	Score       *float64
	Description string
}

type options struct {
	text *TFIDF
}

type option func(*options)

// WithText appends the description's text features to every vector.
func WithText(t *TFIDF) option {
	return func(opts *options) { opts.text = t }
}

// Encoder turns rows into classifier features. It only reads its fitted
// state, so one Encoder can be shared by concurrent workers.
type Encoder struct {
	encoders Encoders
	text     *TFIDF
}

func New(encoders Encoders, opts ...option) Encoder {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return Encoder{
		encoders: encoders,
		text:     o.text,
	}
}

// Encode never fails: unseen categories get the Unseen code and an absent
// score is encoded as 0.
func (e Encoder) Encode(in Input) types.FeatureVector {
	fv := types.FeatureVector{
		VendorCode:  e.encoders.Vendor.Transform(in.Vendor),
		ProductCode: e.encoders.Product.Transform(in.Product),
	}
	if in.Score != nil {
		fv.Score = *in.Score
		fv.HasScore = true
	}
	if e.text != nil {
		fv.Text = e.text.Transform(in.Description)
	}
	return fv
}
