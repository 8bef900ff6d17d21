package flatfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/quantfeed/flatfiles/pkg/errors"
)

type ClientTestSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) newClient(mock *mockStore, dataDir string) *Client {
	client, err := NewClientWithStore(Config{
		Market:    "options",
		Endpoint:  "trades",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		DataDir:   dataDir,
	}, mock, nil)
	suite.Require().NoError(err)

	return client
}

func (suite *ClientTestSuite) TestNewClientWithStore_InvalidMarket() {
	client, err := NewClientWithStore(Config{Market: "bonds", Endpoint: "trades"}, &mockStore{}, nil)
	suite.Error(err)
	suite.Nil(client)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidMarket))
}

func (suite *ClientTestSuite) TestNewClientWithStore_InvalidEndpoint() {
	client, err := NewClientWithStore(Config{Market: "options", Endpoint: "ticks"}, &mockStore{}, nil)
	suite.Error(err)
	suite.Nil(client)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidEndpoint))
}

func (suite *ClientTestSuite) TestNewClient_MissingConfiguration() {
	suite.T().Setenv("POLYGON_MARKET", "")
	suite.T().Setenv("POLYGON_ENDPOINT", "")
	suite.T().Setenv("ACCESS_KEY", "")
	suite.T().Setenv("SECRET_KEY", "")

	client, err := NewClient(context.Background(), Config{}, nil)
	suite.Error(err)
	suite.Nil(client)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestConfigEnvFallback() {
	suite.T().Setenv("POLYGON_MARKET", "stocks")
	suite.T().Setenv("POLYGON_ENDPOINT", "day")
	suite.T().Setenv("ACCESS_KEY", "env-access")
	suite.T().Setenv("SECRET_KEY", "env-secret")
	suite.T().Setenv("DATADIR", "/tmp/env-data")

	resolved := Config{Market: "options"}.WithEnvFallback()

	// Explicit values win, empty fields come from the environment
	suite.Equal("options", resolved.Market)
	suite.Equal("day", resolved.Endpoint)
	suite.Equal("env-access", resolved.AccessKey)
	suite.Equal("env-secret", resolved.SecretKey)
	suite.Equal("/tmp/env-data", resolved.DataDir)
}

func (suite *ClientTestSuite) TestConfigEnvFallback_DefaultDataDir() {
	suite.T().Setenv("DATADIR", "")

	resolved := Config{Market: "options", Endpoint: "trades"}.WithEnvFallback()
	suite.Equal(".", resolved.DataDir)
}

func (suite *ClientTestSuite) TestDownloadRange_EndToEnd() {
	// Thu 2024-02-01 through Sun 2024-02-04: business days are Feb 1 and Feb 2
	keyFeb1 := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"
	keyFeb2 := "us_options_opra/trades_v1/2024/02/2024-02-02.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			keyFeb1: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
			keyFeb2: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nB,1.50,1709908200000000000\n"),
		},
	}

	dataDir := suite.T().TempDir()
	client := suite.newClient(mock, dataDir)

	start, err := ParseDate("20240201")
	suite.Require().NoError(err)
	end, err := ParseDate("20240204")
	suite.Require().NoError(err)

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end),
		DownloadOptions{Clean: true, Partition: true})
	suite.NoError(err)
	suite.NotNil(combined)
	suite.Equal(2, combined.NumRows())
	suite.True(combined.HasColumn(TimestampColumn))

	// Only the two business days were fetched, in order
	suite.Equal([]string{keyFeb1, keyFeb2}, mock.fetchedKeys)

	// One partition per business day found
	for _, name := range []string{"2024-02-01.parquet", "2024-02-02.parquet"} {
		info, err := os.Stat(filepath.Join(dataDir, "options", name))
		suite.NoError(err)
		suite.Greater(info.Size(), int64(0))
	}
}

func (suite *ClientTestSuite) TestDownloadRange_SkipsMissingDays() {
	keyFeb1 := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			keyFeb1: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
		},
	}
	client := suite.newClient(mock, suite.T().TempDir())

	start, _ := ParseDate("20240201")
	end, _ := ParseDate("20240202")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end), DownloadOptions{})
	suite.NoError(err)
	suite.NotNil(combined)
	suite.Equal(1, combined.NumRows())

	// Both days were attempted; the missing one did not halt the range
	suite.Len(mock.fetchedKeys, 2)
}

func (suite *ClientTestSuite) TestDownloadRange_SkipsForbiddenDays() {
	keyFeb1 := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"
	keyFeb2 := "us_options_opra/trades_v1/2024/02/2024-02-02.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			keyFeb2: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nB,1.50,1709908200000000000\n"),
		},
		errByKey: map[string]error{
			keyFeb1: errors.Newf(errors.ErrCodeObjectForbidden, "access denied for key %s", keyFeb1),
		},
	}
	client := suite.newClient(mock, suite.T().TempDir())

	start, _ := ParseDate("20240201")
	end, _ := ParseDate("20240202")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end), DownloadOptions{})
	suite.NoError(err)
	suite.NotNil(combined)
	suite.Equal(1, combined.NumRows())
}

func (suite *ClientTestSuite) TestDownloadRange_TransportErrorIsFatal() {
	keyFeb1 := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"
	keyFeb2 := "us_options_opra/trades_v1/2024/02/2024-02-02.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			keyFeb1: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
		},
		errByKey: map[string]error{
			keyFeb2: errors.New(errors.ErrCodeStorageTransport, "connection reset"),
		},
	}
	client := suite.newClient(mock, suite.T().TempDir())

	start, _ := ParseDate("20240201")
	end, _ := ParseDate("20240205")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end), DownloadOptions{})
	suite.Error(err)
	suite.Nil(combined)
	suite.True(errors.HasCode(err, errors.ErrCodeStorageTransport))

	// The range halted at the failing day; Feb 5 was never attempted
	suite.Equal([]string{keyFeb1, keyFeb2}, mock.fetchedKeys)
}

func (suite *ClientTestSuite) TestDownloadRange_EmptyResultIsAbsentNotError() {
	mock := &mockStore{objects: map[string][]byte{}}
	client := suite.newClient(mock, suite.T().TempDir())

	start, _ := ParseDate("20240201")
	end, _ := ParseDate("20240202")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end), DownloadOptions{})
	suite.NoError(err)
	suite.Nil(combined)
}

func (suite *ClientTestSuite) TestDownloadRange_StartAfterEnd() {
	client := suite.newClient(&mockStore{}, suite.T().TempDir())

	start, _ := ParseDate("20240205")
	end, _ := ParseDate("20240201")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end), DownloadOptions{})
	suite.Error(err)
	suite.Nil(combined)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDateRange))
}

func (suite *ClientTestSuite) TestDownloadRange_SaveCombined() {
	keyFeb1 := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			keyFeb1: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
		},
	}

	dataDir := suite.T().TempDir()
	client := suite.newClient(mock, dataDir)

	start, _ := ParseDate("20240201")
	end, _ := ParseDate("20240201")

	combined, err := client.DownloadRange(context.Background(), start, optional.Some(end),
		DownloadOptions{SaveCombined: true})
	suite.NoError(err)
	suite.NotNil(combined)

	info, err := os.Stat(filepath.Join(dataDir, "options", "trades.parquet"))
	suite.NoError(err)
	suite.Greater(info.Size(), int64(0))
}

func (suite *ClientTestSuite) TestDownloadListing() {
	keyA := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"
	keyB := "us_options_opra/trades_v1/2024/02/2024-02-02.csv.gz"

	mock := &mockStore{
		listKeys: []string{keyA, keyB},
		objects: map[string][]byte{
			keyA: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
			keyB: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nB,1.50,1709908200000000000\n"),
		},
	}
	client := suite.newClient(mock, suite.T().TempDir())

	combined, err := client.DownloadListing(context.Background(), optional.Some(2024), optional.Some(2), DownloadOptions{})
	suite.NoError(err)
	suite.NotNil(combined)
	suite.Equal(2, combined.NumRows())
	suite.Equal([]string{"us_options_opra/trades_v1/2024/02"}, mock.listedWith)
}

func (suite *ClientTestSuite) TestDownloadListing_MonthWithoutYear() {
	client := suite.newClient(&mockStore{}, suite.T().TempDir())

	combined, err := client.DownloadListing(context.Background(), optional.None[int](), optional.Some(2), DownloadOptions{})
	suite.Error(err)
	suite.Nil(combined)
	suite.True(errors.HasCode(err, errors.ErrCodeMonthWithoutYear))
}

func (suite *ClientTestSuite) TestListKeys() {
	keyA := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"
	keyB := "us_options_opra/trades_v1/2024/02/2024-02-02.csv.gz"

	mock := &mockStore{listKeys: []string{keyA, keyB}}
	client := suite.newClient(mock, suite.T().TempDir())

	keys, err := client.ListKeys(context.Background(), optional.Some(2024), optional.None[int]())
	suite.NoError(err)
	suite.Equal([]string{keyA, keyB}, keys)
	suite.Equal([]string{"us_options_opra/trades_v1/2024"}, mock.listedWith)

	// Keys are returned without fetching any object
	suite.Empty(mock.fetchedKeys)
}

func (suite *ClientTestSuite) TestDownloadSingle() {
	key := "us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"

	mock := &mockStore{
		objects: map[string][]byte{
			key: gzipBytes(suite.T(), "conditions,price,sip_timestamp\nA,1.25,1709908200000000000\n"),
		},
	}

	dataDir := suite.T().TempDir()
	client := suite.newClient(mock, dataDir)

	table, err := client.DownloadSingle(context.Background(), 2024, 2, 1, true)
	suite.NoError(err)
	suite.NotNil(table)
	suite.Equal(1, table.NumRows())

	_, err = os.Stat(filepath.Join(dataDir, "options", "2024-02-01.parquet"))
	suite.NoError(err)
}

func (suite *ClientTestSuite) TestDownloadSingle_Absent() {
	client := suite.newClient(&mockStore{objects: map[string][]byte{}}, suite.T().TempDir())

	table, err := client.DownloadSingle(context.Background(), 2024, 2, 1, false)
	suite.NoError(err)
	suite.Nil(table)
}

func (suite *ClientTestSuite) TestStemOf() {
	suite.Equal("2024-02-01", stemOf("us_options_opra/trades_v1/2024/02/2024-02-01.csv.gz"))
	suite.Equal("file", stemOf("file"))
}
