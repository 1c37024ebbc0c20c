package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

func writeFile(t *testing.T, bfs billy.Filesystem, name, content string) {
	t.Helper()
	if err := util.WriteFile(bfs, name, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func newMemRepo(t *testing.T) (*GoGitRepo, billy.Filesystem) {
	t.Helper()
	bfs := memfs.New()
	repo, err := Init(t.Context(), bfs, Author{Name: "Test User", Email: "test@example.com"})
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return repo, bfs
}

func TestRepo(t *testing.T) {
	t.Parallel()

	t.Run("Init", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		ctx := t.Context()
		bfs := osfs.New(tmpDir)

		ok, err := IsRepository(bfs)
		if err != nil || ok {
			t.Fatalf("IsRepository() = %v, %v; want false, nil", ok, err)
		}
		if _, err := Init(ctx, bfs, Author{Name: "Test User", Email: "test@example.com"}); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}

		// Check .git exists
		if _, err := os.Stat(filepath.Join(tmpDir, ".git")); os.IsNotExist(err) {
			t.Error(".git directory not created")
		}
		if ok, err := IsRepository(bfs); err != nil || !ok {
			t.Fatalf("IsRepository() = %v, %v; want true, nil", ok, err)
		}

		// Check config
		repo, err := Open(ctx, bfs, Author{})
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		cfg, err := repo.repo.Config()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.User.Name != "Test User" || cfg.User.Email != "test@example.com" {
			t.Errorf("config user = %q <%s>", cfg.User.Name, cfg.User.Email)
		}

		// A second Init must not clobber the existing history.
		if _, err := Init(ctx, bfs, Author{}); err == nil {
			t.Error("Init() on an existing repository should fail")
		}
	})

	t.Run("OpenMissing", func(t *testing.T) {
		t.Parallel()
		if _, err := Open(t.Context(), memfs.New(), Author{}); err == nil {
			t.Fatal("Open() on an empty filesystem should fail")
		}
	})

	t.Run("Commit", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)

		testFile := "test.txt"
		writeFile(t, bfs, testFile, "hello world")

		author := Author{Name: "Author", Email: "author@example.com"}
		hash, err := repo.CommitTx(ctx, author, func() (string, []string, error) {
			return "Initial commit", []string{testFile}, nil
		})
		if err != nil {
			t.Fatalf("CommitTx() failed: %v", err)
		}
		if len(hash) != 40 {
			t.Errorf("expected a 40 char hash, got %q", hash)
		}

		history, err := repo.Log(ctx, testFile, 1)
		if err != nil {
			t.Fatalf("Log() failed: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 commit, got %d", len(history))
		}
		if history[0].Hash != hash {
			t.Errorf("expected hash %s, got %s", hash, history[0].Hash)
		}
		if history[0].Message != "Initial commit" {
			t.Errorf("expected message 'Initial commit', got '%s'", history[0].Message)
		}
		if history[0].Author != "Author" {
			t.Errorf("expected author 'Author', got '%s'", history[0].Author)
		}
		if history[0].Committer != "Test User" {
			t.Errorf("expected committer 'Test User', got '%s'", history[0].Committer)
		}
	})

	t.Run("CommitDefaultAuthor", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		bfs := memfs.New()
		repo, err := Init(ctx, bfs, Author{})
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, bfs, "a.md", "a")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "msg", []string{"a.md"}, nil
		}); err != nil {
			t.Fatal(err)
		}
		history, err := repo.Log(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := history[0]; got.Author != DefaultName || got.AuthorEmail != DefaultEmail {
			t.Errorf("author = %q <%s>, want %q <%s>", got.Author, got.AuthorEmail, DefaultName, DefaultEmail)
		}
	})

	t.Run("CommitTxError", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, _ := newMemRepo(t)
		wantErr := errors.New("boom")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "", nil, wantErr
		}); !errors.Is(err, wantErr) {
			t.Fatalf("CommitTx() = %v, want %v", err, wantErr)
		}
		history, err := repo.Log(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 0 {
			t.Errorf("expected no commits, got %d", len(history))
		}
	})

	t.Run("EmptyCommit", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)
		writeFile(t, bfs, "a.md", "same")
		for i := range 2 {
			if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
				return "Update", []string{"a.md"}, nil
			}); err != nil {
				t.Fatalf("CommitTx(%d) failed: %v", i, err)
			}
		}
		history, err := repo.Log(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 {
			t.Errorf("expected 2 commits for 2 saves, got %d", len(history))
		}
	})

	t.Run("Log", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)

		if history, err := repo.Log(ctx, "", 10); err != nil || len(history) != 0 {
			t.Fatalf("Log() on empty repo = %v, %v", history, err)
		}

		testFile := "test.txt"
		for _, step := range []struct{ file, content, msg string }{
			{testFile, "v1", "Commit 1"},
			{"other.txt", "x", "Other"},
			{testFile, "v2", "Commit 2\n\nWith a body."},
		} {
			writeFile(t, bfs, step.file, step.content)
			if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
				return step.msg, []string{step.file}, nil
			}); err != nil {
				t.Fatal(err)
			}
		}

		history, err := repo.Log(ctx, testFile, 10)
		if err != nil {
			t.Fatalf("Log() failed: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 commits, got %d", len(history))
		}
		if history[0].Message != "Commit 2" {
			t.Errorf("expected first commit to be 'Commit 2', got '%s'", history[0].Message)
		}
		if history[0].Body != "With a body." {
			t.Errorf("expected body 'With a body.', got '%s'", history[0].Body)
		}
		if history[1].Message != "Commit 1" {
			t.Errorf("expected second commit to be 'Commit 1', got '%s'", history[1].Message)
		}

		all, err := repo.Log(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 commits, got %d", len(all))
		}
		limited, err := repo.Log(ctx, ".", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 1 || limited[0].Hash != all[0].Hash {
			t.Errorf("Log(n=1) = %v", limited)
		}
	})

	t.Run("UntrackedRemoval", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)
		writeFile(t, bfs, "kept.md", "kept")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Add", []string{"kept.md"}, nil
		}); err != nil {
			t.Fatal(err)
		}
		// Written and removed without ever being staged.
		writeFile(t, bfs, "stray.md", "stray")
		hash, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			if err := bfs.Remove("stray.md"); err != nil {
				return "", nil, err
			}
			return "Remove stray", []string{"stray.md"}, nil
		})
		if err != nil {
			t.Fatalf("CommitTx() failed: %v", err)
		}
		history, err := repo.Log(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 || history[0].Hash != hash || history[0].Message != "Remove stray" {
			t.Fatalf("history = %v", history)
		}
		if got, err := repo.FileAtCommit(ctx, "HEAD", "kept.md"); err != nil || string(got) != "kept" {
			t.Errorf("FileAtCommit(kept.md) = %q, %v", got, err)
		}
		if _, err := repo.FileAtCommit(ctx, "HEAD", "stray.md"); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("FileAtCommit(stray.md) = %v, want ErrFileNotFound", err)
		}
	})

	t.Run("StageRemoval", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)
		writeFile(t, bfs, "a.md", "a")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Add", []string{"a.md"}, nil
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			if err := bfs.Remove("a.md"); err != nil {
				return "", nil, err
			}
			return "Delete", []string{"a.md"}, nil
		}); err != nil {
			t.Fatalf("CommitTx(delete) failed: %v", err)
		}
		if _, err := repo.FileAtCommit(ctx, "HEAD", "a.md"); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("FileAtCommit(HEAD) = %v, want ErrFileNotFound", err)
		}
		if got, err := repo.FileAtCommit(ctx, "HEAD~1", "a.md"); err != nil || string(got) != "a" {
			t.Errorf("FileAtCommit(HEAD~1) = %q, %v", got, err)
		}
	})

	t.Run("FileAtCommit", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)

		testFile := "test.txt"
		writeFile(t, bfs, testFile, "content v1")
		v1Hash, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Commit 1", []string{testFile}, nil
		})
		if err != nil {
			t.Fatal(err)
		}

		writeFile(t, bfs, testFile, "content v2")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Commit 2", []string{testFile}, nil
		}); err != nil {
			t.Fatal(err)
		}

		content, err := repo.FileAtCommit(ctx, v1Hash, testFile)
		if err != nil {
			t.Fatalf("FileAtCommit() failed: %v", err)
		}
		if string(content) != "content v1" {
			t.Errorf("expected 'content v1', got '%s'", string(content))
		}
		content, err = repo.FileAtCommit(ctx, "HEAD", testFile)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "content v2" {
			t.Errorf("expected 'content v2', got '%s'", string(content))
		}

		if _, err := repo.FileAtCommit(ctx, v1Hash, "missing.txt"); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
		if _, err := repo.FileAtCommit(ctx, "0123456789012345678901234567890123456789", testFile); !errors.Is(err, ErrRevisionNotFound) {
			t.Errorf("expected ErrRevisionNotFound, got %v", err)
		}
		if _, err := repo.FileAtCommit(ctx, "no-such-branch", testFile); !errors.Is(err, ErrRevisionNotFound) {
			t.Errorf("expected ErrRevisionNotFound, got %v", err)
		}
	})

	t.Run("SetClock", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		repo, bfs := newMemRepo(t)
		when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		repo.SetClock(func() time.Time { return when })
		writeFile(t, bfs, "a.md", "a")
		if _, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Add", []string{"a.md"}, nil
		}); err != nil {
			t.Fatal(err)
		}
		history, err := repo.Log(ctx, "", 1)
		if err != nil {
			t.Fatal(err)
		}
		if !history[0].AuthorDate.Equal(when) {
			t.Errorf("AuthorDate = %v, want %v", history[0].AuthorDate, when)
		}
	})

	t.Run("Reopen", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		ctx := t.Context()
		repo, err := Init(ctx, osfs.New(tmpDir), Author{})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, "a.md"), []byte("persisted"), 0o600); err != nil {
			t.Fatal(err)
		}
		hash, err := repo.CommitTx(ctx, Author{}, func() (string, []string, error) {
			return "Add", []string{"a.md"}, nil
		})
		if err != nil {
			t.Fatal(err)
		}

		reopened, err := Open(ctx, osfs.New(tmpDir), Author{})
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		got, err := reopened.FileAtCommit(ctx, hash, "a.md")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "persisted" {
			t.Errorf("expected 'persisted', got %q", got)
		}
	})
}
