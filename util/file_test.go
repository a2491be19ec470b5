package util_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/netbirdio/codepush/util"
)

var _ = Describe("Files", func() {

	var (
		tmpDir string
	)

	type TestStatus struct {
		Labels  map[string]string
		Hashes  []string
		Counter int
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "codepush_util_test_tmp_*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.RemoveAll(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Status file", func() {
		Context("in JSON format", func() {
			It("should be written and read successfully", func() {
				written := &TestStatus{
					Labels:  map[string]string{"v1": "h1", "v2": "h2"},
					Hashes:  []string{"h1", "h2"},
					Counter: 7,
				}

				file := filepath.Join(tmpDir, "nested", "status.json")
				err := util.WriteJson(context.Background(), file, written)
				Expect(err).NotTo(HaveOccurred())

				read, err := util.ReadJson(file, &TestStatus{})
				Expect(err).NotTo(HaveOccurred())
				Expect(read).NotTo(BeNil())
				Expect(read.(*TestStatus).Labels).To(Equal(written.Labels))
				Expect(read.(*TestStatus).Hashes).To(ContainElements("h1", "h2"))
				Expect(read.(*TestStatus).Counter).To(BeEquivalentTo(7))
			})

			It("should not leave temp files behind", func() {
				file := filepath.Join(tmpDir, "status.json")
				Expect(util.WriteJson(context.Background(), file, &TestStatus{Counter: 1})).To(Succeed())
				Expect(util.WriteJson(context.Background(), file, &TestStatus{Counter: 2})).To(Succeed())

				entries, err := os.ReadDir(tmpDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(1))
			})

			It("should refuse to write with a cancelled context", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				file := filepath.Join(tmpDir, "status.json")
				err := util.WriteJson(ctx, file, &TestStatus{})
				Expect(err).To(MatchError(context.Canceled))
				Expect(util.FileExists(file)).To(BeFalse())
			})
		})

		Context("when removed", func() {
			It("should ignore missing files", func() {
				Expect(util.RemoveJson(filepath.Join(tmpDir, "missing.json"))).To(Succeed())
			})

			It("should delete existing files", func() {
				file := filepath.Join(tmpDir, "status.json")
				Expect(util.WriteJson(context.Background(), file, &TestStatus{})).To(Succeed())
				Expect(util.RemoveJson(file)).To(Succeed())
				Expect(util.FileExists(file)).To(BeFalse())
			})
		})
	})

	Describe("Copying file contents", func() {
		Context("from one file to another", func() {
			It("should be successful", func() {

				src := filepath.Join(tmpDir, "copytest_src")
				dst := filepath.Join(tmpDir, "copytest_dst")

				err := util.WriteJson(context.Background(), src, []string{"1", "2", "3"})
				Expect(err).NotTo(HaveOccurred())

				err = util.CopyFileContents(src, dst)
				Expect(err).NotTo(HaveOccurred())

				Expect(md5sum(src)).To(Equal(md5sum(dst)))
			})
		})

		Context("from one directory to another", func() {
			It("should keep the relative layout", func() {
				src := filepath.Join(tmpDir, "src")
				dst := filepath.Join(tmpDir, "dst")

				Expect(os.MkdirAll(filepath.Join(src, "assets", "img"), 0750)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(src, "index.bundle"), []byte("bundle"), 0600)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(src, "assets", "img", "logo.png"), []byte("png"), 0600)).To(Succeed())

				Expect(util.CopyDirContents(src, dst)).To(Succeed())

				Expect(util.FileExists(filepath.Join(dst, "index.bundle"))).To(BeTrue())
				Expect(util.DirExists(filepath.Join(dst, "assets", "img"))).To(BeTrue())
				Expect(md5sum(filepath.Join(src, "assets", "img", "logo.png"))).
					To(Equal(md5sum(filepath.Join(dst, "assets", "img", "logo.png"))))
			})
		})
	})
})

func md5sum(path string) string {
	f, err := os.Open(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	h := md5.New()
	_, err = io.Copy(h, f)
	Expect(err).NotTo(HaveOccurred())
	return hex.EncodeToString(h.Sum(nil))
}
