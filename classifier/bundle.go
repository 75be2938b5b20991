package classifier

import (
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/encoder"
	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

const (
	ModelFile    = "model.json"
	EncodersFile = "encoders.json"
	TFIDFFile    = "tfidf.json"
	LabelsFile   = "labels.json"
)

var (
	ErrModelNotFound    = xerrors.New("model not found")
	ErrEncodersNotFound = xerrors.New("encoders not found")
)

// Bundle is everything a trained model needs at inference time. Predicting
// with the forest also needs the encoders it was trained with.
type Bundle struct {
	Forest   *Forest
	Encoders *encoder.Encoders
	Text     *encoder.TFIDF
	Labels   []types.Severity
}

// LoadBundle reads a model directory. Every artifact may also be stored
// gzip or zstd compressed (model.json.gz, model.json.zst).
func LoadBundle(fs afero.Fs, dir string) (*Bundle, error) {
	modelPath, ok, err := artifact(fs, dir, ModelFile)
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, xerrors.Errorf("%s: %w", filepath.Join(dir, ModelFile), ErrModelNotFound)
	}

	var forest Forest
	if err = utils.NewFs(fs).ReadJSON(modelPath, &forest); err != nil {
		return nil, xerrors.Errorf("unable to load model: %w", err)
	}
	if err = forest.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid model %s: %w", modelPath, err)
	}
	bundle := &Bundle{Forest: &forest}

	if path, ok, err := artifact(fs, dir, EncodersFile); err != nil {
		return nil, err
	} else if ok {
		enc, err := encoder.LoadEncoders(fs, path)
		if err != nil {
			return nil, err
		}
		bundle.Encoders = &enc
	}

	if path, ok, err := artifact(fs, dir, TFIDFFile); err != nil {
		return nil, err
	} else if ok {
		if bundle.Text, err = encoder.LoadTFIDF(fs, path); err != nil {
			return nil, err
		}
		if want := 3 + bundle.Text.Dim(); forest.NFeatures > 0 && forest.NFeatures != want {
			return nil, xerrors.Errorf("model expects %d features, text transform yields %d", forest.NFeatures, want)
		}
	}

	bundle.Labels = types.ClassLabels
	if path, ok, err := artifact(fs, dir, LabelsFile); err != nil {
		return nil, err
	} else if ok {
		if bundle.Labels, err = loadLabels(fs, path); err != nil {
			return nil, err
		}
	}
	if len(bundle.Labels) != forest.NClasses {
		return nil, xerrors.Errorf("model has %d classes, label table has %d", forest.NClasses, len(bundle.Labels))
	}
	forest.SetLabels(bundle.Labels)

	log.Printf("Loaded model from %s (%d trees, %d classes)", dir, len(forest.Trees), forest.NClasses)
	return bundle, nil
}

func artifact(fs afero.Fs, dir, name string) (string, bool, error) {
	for _, ext := range []string{"", ".gz", ".zst"} {
		path := filepath.Join(dir, name+ext)
		ok, err := afero.Exists(fs, path)
		if err != nil {
			return "", false, xerrors.Errorf("unable to stat %s: %w", path, err)
		} else if ok {
			return path, true, nil
		}
	}
	return "", false, nil
}

func loadLabels(fs afero.Fs, path string) ([]types.Severity, error) {
	var raw []string
	if err := utils.NewFs(fs).ReadJSON(path, &raw); err != nil {
		return nil, xerrors.Errorf("unable to load labels: %w", err)
	}
	labels := make([]types.Severity, 0, len(raw))
	for _, r := range raw {
		s, err := types.ParseSeverity(r)
		if err != nil {
			return nil, xerrors.Errorf("label table %s: %w", path, err)
		}
		labels = append(labels, s)
	}
	return labels, nil
}
