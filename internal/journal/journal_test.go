package journal_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/journal"
	"github.com/roach88/tabledriver/internal/record"
)

var _ driver.Recorder = (*journal.Recorder)(nil)

func stepRecord(line string, number int, outcome record.Outcome) *record.TestRecord {
	rec := record.New(line, ",")
	rec.Filename = "EnterUser"
	rec.Level = record.Step
	rec.LineNumber = number
	rec.Status = outcome
	return rec
}

var _ = Describe("Journal", func() {
	var (
		ctx    context.Context
		tmpDir string
		j      *journal.Journal
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		tmpDir, err = ioutil.TempDir("", "journal-test-*")
		Expect(err).NotTo(HaveOccurred())

		j, err = journal.Open(tmpDir, journal.Options{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if j != nil {
			j.Close()
		}
		os.RemoveAll(tmpDir)
	})

	It("starts empty", func() {
		empty, err := j.IsEmpty()
		Expect(err).NotTo(HaveOccurred())
		Expect(empty).To(BeTrue())

		count := 0
		Expect(j.LoadAll(func(journal.Entry) error {
			count++
			return nil
		})).To(Succeed())
		Expect(count).To(BeZero())
	})

	It("round trips recorded outcomes", func() {
		r := j.Recorder("run-1")
		rec := stepRecord("T,Login,Button,Click", 3, record.TestFailureLogged)
		rec.Command = "Click"
		rec.StatusInfo = "button not found"
		Expect(r.Record(ctx, rec)).To(Succeed())
		Expect(r.Record(ctx, stepRecord("C,ExitTable", 4, record.ExitTableCommand))).To(Succeed())

		entries, err := j.Run("run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))

		Expect(entries[0]).To(Equal(journal.Entry{
			Index:      1,
			RunID:      "run-1",
			Table:      "EnterUser",
			Level:      record.Step,
			LineNumber: 3,
			Type:       record.TestStep,
			Command:    "Click",
			Line:       "T,Login,Button,Click",
			Outcome:    record.TestFailureLogged,
			StatusInfo: "button not found",
		}))
		Expect(entries[1].Index).To(Equal(uint64(2)))
		Expect(entries[1].Outcome).To(Equal(record.ExitTableCommand))
	})

	It("keeps negative outcome codes", func() {
		Expect(j.Recorder("run-1").Record(ctx, stepRecord("C,Pass", 1, record.ScriptWarning))).To(Succeed())

		entries, err := j.Run("run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries[0].Outcome).To(Equal(record.ScriptWarning))
	})

	It("keeps records whose text is not UTF-8", func() {
		Expect(j.Recorder("run-1").Record(ctx, stepRecord("C, LogMessage, caf\xe9", 1, record.NoScriptFailure))).To(Succeed())

		entries, err := j.Run("run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Line).To(Equal("C, LogMessage, caf\uFFFD"))
	})

	It("filters entries by run", func() {
		Expect(j.Recorder("run-1").Record(ctx, stepRecord("C,A", 1, record.NoScriptFailure))).To(Succeed())
		Expect(j.Recorder("run-2").Record(ctx, stepRecord("C,B", 1, record.NoScriptFailure))).To(Succeed())
		Expect(j.Recorder("run-1").Record(ctx, stepRecord("C,C", 2, record.NoScriptFailure))).To(Succeed())

		entries, err := j.Run("run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Line).To(Equal("C,A"))
		Expect(entries[1].Line).To(Equal("C,C"))
	})

	It("continues appending after reopen", func() {
		Expect(j.Recorder("run-1").Record(ctx, stepRecord("C,A", 1, record.NoScriptFailure))).To(Succeed())
		Expect(j.Close()).To(Succeed())

		var err error
		j, err = journal.Open(tmpDir, journal.Options{Sync: true})
		Expect(err).NotTo(HaveOccurred())

		idx, err := j.Append(journal.Entry{RunID: "run-1", Line: "C,B"})
		Expect(err).NotTo(HaveOccurred())
		Expect(idx).To(Equal(uint64(2)))
	})

	It("stops loading at the first callback error", func() {
		for i := 1; i <= 3; i++ {
			_, err := j.Append(journal.Entry{RunID: "run-1", LineNumber: i})
			Expect(err).NotTo(HaveOccurred())
		}

		seen := 0
		err := j.LoadAll(func(e journal.Entry) error {
			seen++
			if e.LineNumber == 2 {
				return fmt.Errorf("stop")
			}
			return nil
		})
		Expect(err).To(MatchError("stop"))
		Expect(seen).To(Equal(2))
	})

	It("drops entries before the truncation index", func() {
		for i := 1; i <= 3; i++ {
			_, err := j.Append(journal.Entry{RunID: "run-1", LineNumber: i})
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(j.Truncate(3)).To(Succeed())

		entries, err := j.Run("run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].LineNumber).To(Equal(3))
		Expect(entries[0].Index).To(Equal(uint64(3)))
	})
})
