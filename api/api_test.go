package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micromeda/micromeda-server/cache"
	"github.com/micromeda/micromeda-server/cache/resultrao"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/global"
	"github.com/micromeda/micromeda-server/micromeda"
	"github.com/micromeda/micromeda-server/service"
	micromedaService "github.com/micromeda/micromeda-server/service/micromeda"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func loadTestTree(t *testing.T) *genprop.Tree {
	file, err := os.Open("../genprop/testdata/genomeProperties.txt")
	require.NoError(t, err)
	defer file.Close()

	tree, err := genprop.Parse(file)
	require.NoError(t, err)
	return tree
}

// setupService wires the service to a fresh miniredis and returns it
// together with the upload folder.
func setupService(t *testing.T) (*miniredis.Miniredis, string) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache.SetRedis(client)

	tree := loadTestTree(t)
	store, err := resultrao.NewStore(client, tree, time.Hour, 8)
	require.NoError(t, err)
	service.Impl.MicromedaIntf = micromedaService.New(tree, nil, store)

	folder := t.TempDir()
	config.Set("UPLOAD_FOLDER", folder)
	return mr, folder
}

func perform(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	GetRouter().ServeHTTP(recorder, request)
	return recorder
}

func get(t *testing.T, url string) *httptest.ResponseRecorder {
	return perform(t, httptest.NewRequest(http.MethodGet, url, nil))
}

func uploadRequest(t *testing.T, fieldName, fileName string, content []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/upload", body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func micromedaFileContent(t *testing.T) []byte {
	path := filepath.Join(t.TempDir(), "results.micro")
	err := micromeda.Write(context.Background(), path, &micromeda.File{Samples: []micromeda.Sample{
		{
			Name: "E_coli",
			Proteins: []micromeda.Protein{
				{Identifier: "ecoli_1", Sequence: "MAAA", Matches: []micromeda.SignatureMatch{{SignatureAccession: "TIGR00034", ExpectedValue: 1e-50}}},
				{Identifier: "ecoli_2", Matches: []micromeda.SignatureMatch{{SignatureAccession: "TIGR01357", ExpectedValue: 1e-30}}},
				{Identifier: "ecoli_3", Sequence: "MKT", Matches: []micromeda.SignatureMatch{{SignatureAccession: "PF01202", ExpectedValue: 1e-20}}},
			},
		},
		{
			Name: "B_subtilis",
			Proteins: []micromeda.Protein{
				{Identifier: "bsub_1", Sequence: "MSS", Matches: []micromeda.SignatureMatch{{SignatureAccession: "PF00005", ExpectedValue: 1e-5}}},
			},
		},
	}})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return content
}

func uploadResults(t *testing.T) string {
	recorder := perform(t, uploadRequest(t, "file", "results.micro", micromedaFileContent(t)))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response["result_key"]
}

func TestProbes(t *testing.T) {
	mr, _ := setupService(t)
	global.Alive, global.Ready = true, false
	defer func() { global.Alive, global.Ready = false, false }()

	assert.Equal(t, http.StatusOK, get(t, "/alive").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, "/ready").Code)

	global.Ready = true
	assert.Equal(t, http.StatusOK, get(t, "/ready").Code)

	mr.SetError("LOADING redis is loading the dataset")
	assert.Equal(t, http.StatusServiceUnavailable, get(t, "/ready").Code)
}

func TestSystemVersion(t *testing.T) {
	setupService(t)

	recorder := get(t, "/system/version")
	require.Equal(t, http.StatusOK, recorder.Code)

	var version map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &version))
	assert.Equal(t, global.ServiceName, version["service"])
	assert.Equal(t, float64(4), version["genome_properties"])
}

func TestGetGenomeProperty(t *testing.T) {
	setupService(t)

	recorder := get(t, "/genome_properties/GenProp0002")
	require.Equal(t, http.StatusOK, recorder.Code)

	var info genprop.PropertyInfo
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
	assert.NotEmpty(t, info.Name)
	assert.Len(t, info.PubMed, 2)
	assert.Equal(t, []string{"map00400", "map01230"}, info.Databases["KEGG"])

	recorder = get(t, "/genome_properties/GenProp9999")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{}`, recorder.Body.String())
}

func TestGetGenomeProperties(t *testing.T) {
	setupService(t)

	var infos map[string]genprop.PropertyInfo
	recorder := get(t, "/genome_properties")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &infos))
	assert.Len(t, infos, 4)

	infos = nil
	recorder = get(t, "/genome_properties?gp_id1=GenProp0002&gp_id2=GenProp0003&gp_id3=GenProp9999")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &infos))
	assert.Len(t, infos, 2)
	assert.Contains(t, infos, "GenProp0002")
	assert.Contains(t, infos, "GenProp0003")

	infos = nil
	recorder = get(t, "/genome_properties?gp_id=GenProp0002&gp_id=GenProp0003")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &infos))
	assert.Len(t, infos, 1)
	assert.Contains(t, infos, "GenProp0002")

	recorder = get(t, "/genome_properties?unrelated=GenProp0002")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{}`, recorder.Body.String())
}

func TestGenomePropertiesResponseCache(t *testing.T) {
	mr, _ := setupService(t)

	first := get(t, "/genome_properties/GenProp0003")
	require.Equal(t, http.StatusOK, first.Code)

	var cached []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "micromeda:response:") {
			cached = append(cached, key)
		}
	}
	require.Len(t, cached, 1)

	second := get(t, "/genome_properties/GenProp0003")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
}

func TestUploadThenFetch(t *testing.T) {
	_, folder := setupService(t)

	resultKey := uploadResults(t)
	assert.Len(t, resultKey, 32)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Empty(t, entries)

	recorder := get(t, "/genome_properties_tree?result_key="+resultKey)
	require.Equal(t, http.StatusOK, recorder.Code)

	var document struct {
		SampleNames  []string `json:"sample_names"`
		PropertyTree struct {
			ID       string            `json:"id"`
			Enabled  bool              `json:"enabled"`
			Children []jsoniter.RawMessage `json:"children"`
		} `json:"property_tree"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &document))
	assert.Equal(t, []string{"E_coli", "B_subtilis"}, document.SampleNames)
	assert.Equal(t, "GenProp0065", document.PropertyTree.ID)
	assert.False(t, document.PropertyTree.Enabled)
	assert.Len(t, document.PropertyTree.Children, 2)

	recorder = get(t, "/fasta/GenProp0002/1?result_key="+resultKey)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, ">ecoli_1 E_coli\nMAAA\n", recorder.Body.String())
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(recorder.Header().Get("Content-Type"), "text/plain"))
}

func TestUploadFileNamesWithURISyntax(t *testing.T) {
	_, folder := setupService(t)
	content := micromedaFileContent(t)

	for _, name := range []string{"run#1.micro", "a?b.micro", "100%.MICRO"} {
		recorder := perform(t, uploadRequest(t, "file", name, content))
		require.Equal(t, http.StatusOK, recorder.Code, "%s: %s", name, recorder.Body.String())

		var response map[string]string
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, http.StatusOK, get(t, "/genome_properties_tree?result_key="+response["result_key"]).Code)
	}

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	setupService(t)

	request := httptest.NewRequest(http.MethodPost, "/upload", nil)
	assert.Equal(t, http.StatusBadRequest, perform(t, request).Code)

	recorder := perform(t, uploadRequest(t, "other", "results.micro", micromedaFileContent(t)))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = perform(t, uploadRequest(t, "file", "results.txt", micromedaFileContent(t)))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = perform(t, uploadRequest(t, "file", "results.micro", []byte("not a database")))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMissingResults(t *testing.T) {
	setupService(t)

	assert.Equal(t, http.StatusNotFound, get(t, "/genome_properties_tree").Code)
	assert.Equal(t, http.StatusNotFound, get(t, "/genome_properties_tree?result_key=deadbeef").Code)
	assert.Equal(t, http.StatusNotFound, get(t, "/fasta/GenProp0002/1?result_key=deadbeef").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, "/fasta/GenProp0002/one").Code)

	resultKey := uploadResults(t)
	assert.Equal(t, http.StatusNotFound, get(t, "/fasta/GenProp9999/1?result_key="+resultKey).Code)
	assert.Equal(t, http.StatusNotFound, get(t, "/fasta/GenProp0002/9?result_key="+resultKey).Code)
}

func TestUploadRecordDisabled(t *testing.T) {
	setupService(t)
	assert.Equal(t, http.StatusNotFound, get(t, "/uploads/deadbeef").Code)
}
