package encoder_test

import (
	"math"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/dep-risk-analyzer/encoder"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

var records = []types.VulnerabilityRecord{
	{CVEID: "CVE-2023-30861", Vendor: "palletsprojects", Product: "flask", Score: types.Float(7.5)},
	{CVEID: "CVE-2023-36053", Vendor: "djangoproject", Product: "django", Score: types.Float(7.5)},
	{CVEID: "CVE-2019-10906", Vendor: "palletsprojects", Product: "jinja2", Score: types.Float(8.6)},
	{CVEID: "CVE-2020-0001", Product: "orphan"},
}

func TestFit(t *testing.T) {
	v := encoder.Fit([]string{"palletsprojects", "djangoproject", "", "palletsprojects"}, types.UnknownVendor)
	assert.Equal(t, []string{"djangoproject", "palletsprojects", "unknown_vendor"}, v.Classes)
	assert.Equal(t, 3, v.Len())
}

func TestVocabulary_Transform(t *testing.T) {
	v := encoder.Fit([]string{"palletsprojects", "djangoproject"}, types.UnknownVendor)

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "fitted", value: "djangoproject", want: 0},
		{name: "fitted last", value: "palletsprojects", want: 1},
		{name: "empty is the unknown token", value: "", want: 2},
		{name: "explicit unknown token", value: "unknown_vendor", want: 2},
		{name: "unseen", value: "totally-unknown-pkg", want: encoder.Unseen},
		{name: "case sensitive", value: "DjangoProject", want: encoder.Unseen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Transform(tt.value))
		})
	}
}

func TestEncodersRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	enc := encoder.FitRecords(records)
	assert.Equal(t, []string{"djangoproject", "palletsprojects", "unknown_vendor"}, enc.Vendor.Classes)
	assert.Equal(t, []string{"django", "flask", "jinja2", "orphan", "unknown_product"}, enc.Product.Classes)

	require.NoError(t, enc.Save(fs, "model/encoders.json"))
	got, err := encoder.LoadEncoders(fs, "model/encoders.json")
	require.NoError(t, err)
	assert.Equal(t, enc.Vendor.Classes, got.Vendor.Classes)
	assert.Equal(t, 1, got.Vendor.Transform("palletsprojects"))
	assert.Equal(t, 1, got.Product.Transform("flask"))
	assert.Equal(t, encoder.Unseen, got.Product.Transform("left-pad"))

	_, err = encoder.LoadEncoders(fs, "model/missing.json")
	assert.ErrorContains(t, err, "unable to load encoders")
}

func TestEncoder_Encode(t *testing.T) {
	enc := encoder.New(encoder.FitRecords(records))

	tests := []struct {
		name string
		in   encoder.Input
		want types.FeatureVector
	}{
		{
			name: "known vendor and product",
			in:   encoder.Input{Vendor: "palletsprojects", Product: "flask", Score: types.Float(7.5)},
			want: types.FeatureVector{VendorCode: 1, ProductCode: 1, Score: 7.5, HasScore: true},
		},
		{
			name: "unseen package",
			in:   encoder.Input{Vendor: "totally-unknown-pkg", Product: "totally-unknown-pkg"},
			want: types.FeatureVector{VendorCode: encoder.Unseen, ProductCode: encoder.Unseen},
		},
		{
			name: "missing vendor uses the unknown token",
			in:   encoder.Input{Product: "orphan"},
			want: types.FeatureVector{VendorCode: 2, ProductCode: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enc.Encode(tt.in))
		})
	}
}

func TestTFIDF_Transform(t *testing.T) {
	tfidf, err := encoder.NewTFIDF(map[string]int{
		"sql":           0,
		"injection":     1,
		"sql injection": 2,
		"overflow":      3,
	}, []float64{2, 1, 3, 1.5}, 2, []string{"a", "the", "in"})
	require.NoError(t, err)
	assert.Equal(t, 4, tfidf.Dim())

	t.Run("unigrams and bigrams", func(t *testing.T) {
		got := tfidf.Transform("SQL injection in the login form")
		norm := math.Sqrt(2*2 + 1*1 + 3*3)
		assert.InDeltaSlice(t, []float64{2 / norm, 1 / norm, 3 / norm, 0}, got, 1e-9)
	})

	t.Run("stop words are dropped before n-grams", func(t *testing.T) {
		got := tfidf.Transform("sql the injection")
		assert.Greater(t, got[2], 0.0)
	})

	t.Run("repeated terms", func(t *testing.T) {
		got := tfidf.Transform("overflow overflow")
		assert.InDeltaSlice(t, []float64{0, 0, 0, 1}, got, 1e-9)
	})

	t.Run("unknown text is the zero vector", func(t *testing.T) {
		assert.Equal(t, []float64{0, 0, 0, 0}, tfidf.Transform("nothing known here"))
		assert.Equal(t, []float64{0, 0, 0, 0}, tfidf.Transform(""))
	})

	t.Run("index outside idf", func(t *testing.T) {
		_, err := encoder.NewTFIDF(map[string]int{"sql": 4}, []float64{1}, 1, nil)
		assert.ErrorContains(t, err, `term "sql" has index 4`)
	})
}

func TestEncoder_EncodeWithText(t *testing.T) {
	tfidf, err := encoder.NewTFIDF(map[string]int{"overflow": 0}, []float64{1}, 1, nil)
	require.NoError(t, err)

	enc := encoder.New(encoder.FitRecords(records), encoder.WithText(tfidf))
	got := enc.Encode(encoder.Input{Vendor: "palletsprojects", Product: "flask", Description: "buffer overflow"})
	assert.Equal(t, []float64{1, 1, 0, 1}, got.Values())
}

func TestLoadTFIDF(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `{"vocabulary": {"xss": 0, "csrf": 1}, "idf": [1.0, 2.0], "ngram_max": 1, "stop_words": ["the"]}`
	require.NoError(t, afero.WriteFile(fs, "tfidf.json", []byte(content), 0600))

	tfidf, err := encoder.LoadTFIDF(fs, "tfidf.json")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1}, tfidf.Transform("CSRF in the admin panel"), 1e-9)
}
