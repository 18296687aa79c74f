package vars_test

import (
	"context"
	"io/ioutil"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/roach88/tabledriver/internal/vars"
)

var _ = Describe("Badger", func() {
	var (
		ctx    context.Context
		tmpDir string
		store  *vars.Badger
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		tmpDir, err = ioutil.TempDir("", "vars-test-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = vars.OpenBadger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
		os.RemoveAll(tmpDir)
	})

	It("reports missing keys without an error", func() {
		v, ok, err := store.Get(ctx, "MISSING")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(v).To(BeEmpty())
	})

	It("stores and overwrites values", func() {
		Expect(store.Put(ctx, "SAFS_DRIVER_CONTROL", "RUNNING")).To(Succeed())
		Expect(store.Put(ctx, "SAFS_DRIVER_CONTROL", "PAUSE_EXECUTION")).To(Succeed())

		v, ok, err := store.Get(ctx, "SAFS_DRIVER_CONTROL")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("PAUSE_EXECUTION"))
	})

	It("lists stored keys", func() {
		Expect(store.Put(ctx, "A", "1")).To(Succeed())
		Expect(store.Put(ctx, "B", "2")).To(Succeed())

		keys, err := store.Keys()
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(ConsistOf("A", "B"))
	})

	It("persists across reopen", func() {
		s := vars.New(store)
		Expect(s.SetValue(ctx, "user", "admin")).To(Succeed())
		Expect(store.Sync()).To(Succeed())
		Expect(store.Close()).To(Succeed())

		var err error
		store, err = vars.OpenBadger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		v, err := vars.New(store).Value(ctx, "USER")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("admin"))
	})

	Context("in memory", func() {
		It("resolves expressions through the service", func() {
			mem, err := vars.OpenBadger("")
			Expect(err).NotTo(HaveOccurred())
			defer mem.Close()

			s := vars.New(mem)
			Expect(s.SetValue(ctx, "name", "world")).To(Succeed())

			out, err := s.ResolveExpressions(ctx, `C, LogMessage, "hello " & ^name`, ",")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("C, LogMessage, hello world"))
		})
	})
})
