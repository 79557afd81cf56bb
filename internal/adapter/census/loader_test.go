package census

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testdataFiles() Files {
	return Files{
		StateGeocodes:    filepath.Join("testdata", "state-geocodes-v2018.csv"),
		CountyGeocodes:   filepath.Join("testdata", "all-geocodes-v2018.csv"),
		StatePopulation:  filepath.Join("testdata", "nst-est2019-01.csv"),
		CountyPopulation: filepath.Join("testdata", "co-est2019-annres.csv"),
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(testdataFiles(), discardLogger())
	require.NoError(t, err)

	// Texas, Washington, their unknown counties, and four counties.
	assert.Equal(t, 8, reg.Len())

	tx, ok := reg.ResolveState(48)
	require.True(t, ok)
	assert.Equal(t, "Texas", tx.Name())
	assert.Equal(t, 3, tx.Region)
	assert.Equal(t, 7, tx.Division)
	assert.Equal(t, 28995881, tx.Population())
	assert.Equal(t, 28995881, tx.UnknownCounty().Population())

	travis, ok := reg.ResolveCounty(48453)
	require.True(t, ok)
	assert.Equal(t, "Travis County", travis.Name())
	assert.Equal(t, 1273954, travis.Population())

	harris, ok := reg.ResolveCounty(48201)
	require.True(t, ok)
	assert.Equal(t, 4713325, harris.Population(), "decimal population")

	king, ok := reg.ResolveCountyForPopulation(53, "King County")
	require.True(t, ok)
	assert.Equal(t, 2252782, king.Population())

	t.Run("only county summary rows", func(t *testing.T) {
		assert.Equal(t, []string{"Harris County", "Travis County"}, reg.CountyNames(48))
	})

	t.Run("county without state stays orphaned", func(t *testing.T) {
		adjuntas, ok := reg.ResolveCounty(72001)
		require.True(t, ok)
		assert.Nil(t, adjuntas.Parent())
		assert.Equal(t, 0, adjuntas.Population())
	})

	t.Run("region rows are not states", func(t *testing.T) {
		_, ok := reg.ResolveState(0)
		assert.False(t, ok)
	})
}

func TestLoadRegistry_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		files := testdataFiles()
		files.CountyGeocodes = filepath.Join(t.TempDir(), "missing.csv")

		_, err := LoadRegistry(files, discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load counties")
	})

	t.Run("file without usable rows", func(t *testing.T) {
		files := testdataFiles()
		files.StatePopulation = files.CountyGeocodes

		_, err := LoadRegistry(files, discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable rows")
	})
}

func TestAddStates(t *testing.T) {
	reg := domain.NewRegistry()
	n := AddStates(reg, [][]string{
		{"Region", "Division", "State (FIPS)", "Name"},
		{"2", "0", "00", "Midwest Region"},
		{"2", "3", "39", " Ohio "},
		{"short", "row"},
	}, discardLogger())

	assert.Equal(t, 1, n)
	ohio, ok := reg.ResolveStateByName("Ohio")
	require.True(t, ok)
	assert.Equal(t, 39, ohio.Code())
}

func TestSetCountyPopulations_NameCleanup(t *testing.T) {
	reg := domain.NewRegistry()
	reg.AddState(3, 5, 12, "Florida")
	reg.AddCounty(12, 109, "St Johns County")

	row := make([]string, 13)
	row[0] = ".St. Johns County, Florida"
	row[12] = "264672"

	n := SetCountyPopulations(reg, [][]string{row}, discardLogger())
	assert.Equal(t, 1, n)

	c, _ := reg.ResolveCounty(12109)
	assert.Equal(t, 264672, c.Population())
}

func TestParsePopulation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "4903185", want: 4903185},
		{in: "4,903,185", want: 4903185},
		{in: " 55869.0 ", want: 55869},
		{in: "2019", want: 2019},
		{in: "", wantErr: true},
		{in: "n/a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePopulation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadRows_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nst-est2019-01.xlsx")

	wb := excelize.NewFile()
	header := []interface{}{"Geographic Area", "Census", "Base", "2010", "2011", "2012", "2013", "2014", "2015", "2016", "2017", "2018", "2019"}
	texas := []interface{}{".Texas", 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 28995881}
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &texas))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	rows, err := ReadRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ".Texas", rows[1][0])
	assert.Equal(t, "28995881", rows[1][12])

	reg := domain.NewRegistry()
	reg.AddState(3, 7, 48, "Texas")
	assert.Equal(t, 1, SetStatePopulations(reg, rows, discardLogger()))
}
