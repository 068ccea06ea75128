package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("filesystem blob store", func() {
	var (
		dir   string
		store *blob.FilesystemStore
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "blobs")
		s, err := blob.NewFilesystemStore(dir)
		Expect(err).To(BeNil())
		store = s
	})

	It("stores and reads back a blob", func() {
		content := []byte("container bytes")
		err := store.Put(context.TODO(), "dev-0-NODE-1.tar.zst", bytes.NewReader(content), int64(len(content)), "application/zstd")
		Expect(err).To(BeNil())

		exists, err := store.Exists(context.TODO(), "dev-0-NODE-1.tar.zst")
		Expect(err).To(BeNil())
		Expect(exists).To(BeTrue())

		rc, err := store.Get(context.TODO(), "dev-0-NODE-1.tar.zst")
		Expect(err).To(BeNil())
		defer rc.Close()
		got, err := io.ReadAll(rc)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(content))
	})

	It("streams blobs of unknown size", func() {
		err := store.Put(context.TODO(), "stream", strings.NewReader("abc"), -1, "")
		Expect(err).To(BeNil())

		exists, err := store.Exists(context.TODO(), "stream")
		Expect(err).To(BeNil())
		Expect(exists).To(BeTrue())
	})

	It("does not keep a partial blob", func() {
		err := store.Put(context.TODO(), "short", strings.NewReader("abc"), 10, "")
		Expect(err).NotTo(BeNil())

		exists, err := store.Exists(context.TODO(), "short")
		Expect(err).To(BeNil())
		Expect(exists).To(BeFalse())

		entries, err := os.ReadDir(dir)
		Expect(err).To(BeNil())
		Expect(entries).To(BeEmpty())
	})

	It("reports missing blobs", func() {
		_, err := store.Get(context.TODO(), "missing")
		Expect(errors.Is(err, blob.ErrNotFound)).To(BeTrue())

		err = store.Delete(context.TODO(), "missing")
		Expect(errors.Is(err, blob.ErrNotFound)).To(BeTrue())

		exists, err := store.Exists(context.TODO(), "missing")
		Expect(err).To(BeNil())
		Expect(exists).To(BeFalse())
	})

	It("deletes a blob", func() {
		Expect(store.Put(context.TODO(), "key", strings.NewReader("x"), 1, "")).To(Succeed())
		Expect(store.Delete(context.TODO(), "key")).To(Succeed())

		exists, err := store.Exists(context.TODO(), "key")
		Expect(err).To(BeNil())
		Expect(exists).To(BeFalse())
	})

	It("rejects keys escaping the directory", func() {
		for _, key := range []string{"", "../outside", "a/b", `a\b`} {
			err := store.Put(context.TODO(), key, strings.NewReader("x"), 1, "")
			Expect(err).NotTo(BeNil(), key)
		}
	})

	Context("factory", func() {
		It("builds the configured filesystem store", func() {
			cfg, err := config.NewDefault()
			Expect(err).To(BeNil())
			cfg.Backup.BlobType = blob.TypeFilesystem
			cfg.Backup.Directory = dir

			s, err := blob.New(context.TODO(), cfg)
			Expect(err).To(BeNil())
			Expect(s.Type()).To(Equal(blob.TypeFilesystem))
		})

		It("rejects unknown store types", func() {
			cfg, err := config.NewDefault()
			Expect(err).To(BeNil())
			cfg.Backup.BlobType = "ftp"

			_, err = blob.New(context.TODO(), cfg)
			Expect(err).NotTo(BeNil())
		})
	})
})
