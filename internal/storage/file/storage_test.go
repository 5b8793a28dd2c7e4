package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/adcondev/relay-daemon/internal/model"
	"github.com/adcondev/relay-daemon/internal/testutil"
)

type StorageSuite struct {
	suite.Suite
	path    string
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "data", "users.yml")
	st, err := New(Config{Path: s.path, Logger: testutil.NopLogger()})
	s.Require().NoError(err)
	s.storage = st
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestMissingFileIsEmpty() {
	count, err := s.storage.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *StorageSuite) TestAppendPersistsAcrossReopen() {
	s.Require().NoError(s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.1", PasswordHash: "h1", Username: "alice"}))
	s.Require().NoError(s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.1", PasswordHash: "h2", Username: "alice2"}))

	reopened, err := New(Config{Path: s.path})
	s.Require().NoError(err)
	defer reopened.Close()

	accounts, err := reopened.AccountsByAddress(s.ctx, "10.0.0.1")
	s.Require().NoError(err)
	s.Require().Len(accounts, 2)
	s.Equal("alice", accounts[0].Username)
	s.Equal("h2", accounts[1].PasswordHash)
}

func (s *StorageSuite) TestDocumentLayout() {
	s.Require().NoError(s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.1", PasswordHash: "h1", Username: "alice"}))

	data, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.Contains(string(data), "ip_addr: 10.0.0.1")
	s.Contains(string(data), "password: h1")
	s.Contains(string(data), "username: alice")

	_, err = os.Stat(s.path + ".tmp")
	s.True(os.IsNotExist(err))
}

func (s *StorageSuite) TestLoadsExistingDocument() {
	doc := "- ip_addr: 192.168.1.5\n  password: secret-hash\n  username: carol\n"
	s.Require().NoError(os.WriteFile(s.path, []byte(doc), 0o600))

	st, err := New(Config{Path: s.path})
	s.Require().NoError(err)
	defer st.Close()

	accounts, err := st.AccountsByAddress(s.ctx, "192.168.1.5")
	s.Require().NoError(err)
	s.Require().Len(accounts, 1)
	s.Equal("carol", accounts[0].Username)
}

func (s *StorageSuite) TestInvalidDocument() {
	s.Require().NoError(os.WriteFile(s.path, []byte("{not: [valid"), 0o600))

	_, err := New(Config{Path: s.path})
	s.Error(err)
}

func (s *StorageSuite) TestClear() {
	s.Require().NoError(s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.1", Username: "alice"}))
	s.Require().NoError(s.storage.Clear(s.ctx))

	count, err := s.storage.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	reopened, err := New(Config{Path: s.path})
	s.Require().NoError(err)
	defer reopened.Close()
	count, err = reopened.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *StorageSuite) TestFailedWriteKeepsCache() {
	s.Require().NoError(s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.1", Username: "alice"}))

	// A directory in place of the temp file makes the write fail.
	s.Require().NoError(os.Mkdir(s.path+".tmp", 0o755))

	err := s.storage.Append(s.ctx, &model.Account{Address: "10.0.0.2", Username: "bob"})
	s.Error(err)

	count, err := s.storage.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *StorageSuite) TestClosed() {
	s.Require().NoError(s.storage.Close())
	_, err := s.storage.AccountsByAddress(s.ctx, "10.0.0.1")
	s.ErrorIs(err, model.ErrStoreClosed)
}

func (s *StorageSuite) TestWatchReloadsExternalChange() {
	watched, err := New(Config{Path: s.path, Watch: true, Logger: testutil.NopLogger()})
	s.Require().NoError(err)
	defer watched.Close()

	doc := "- ip_addr: 10.1.1.1\n  password: h\n  username: dave\n"
	tmp := s.path + ".ext"
	s.Require().NoError(os.WriteFile(tmp, []byte(doc), 0o600))
	s.Require().NoError(os.Rename(tmp, s.path))

	s.Eventually(func() bool {
		accounts, err := watched.AccountsByAddress(s.ctx, "10.1.1.1")
		return err == nil && len(accounts) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *StorageSuite) TestWatchKeepsOwnWrites() {
	path := filepath.Join(s.T().TempDir(), "users.yml")
	watched, err := New(Config{Path: path, Watch: true, Logger: testutil.NopLogger()})
	s.Require().NoError(err)

	const n = 300
	for i := 0; i < n; i++ {
		s.Require().NoError(watched.Append(s.ctx, &model.Account{
			Address:      fmt.Sprintf("10.2.%d.%d", i/256, i%256),
			PasswordHash: "h",
			Username:     fmt.Sprintf("user%d", i),
		}))
	}

	// Let the watcher drain the events of our own renames.
	time.Sleep(300 * time.Millisecond)

	count, err := watched.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(n, count)
	s.Require().NoError(watched.Close())

	persisted, err := readDocument(path)
	s.Require().NoError(err)
	s.Len(persisted, n)
}
