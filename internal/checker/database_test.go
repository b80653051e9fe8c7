package checker

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-checker/internal/lottery"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("winning sets", func() {
		When("nothing was saved", func() {
			It("loads an empty list", func() {
				sets, err := db.LoadWinningSets()
				Expect(err).NotTo(HaveOccurred())
				Expect(sets).To(BeEmpty())
			})
		})

		When("a list was saved", func() {
			BeforeEach(func() {
				Expect(db.SaveWinningSets([]lottery.WinningNumberSet{currentSet(), previousSet()})).To(Succeed())
			})

			It("loads it back in order", func() {
				sets, err := db.LoadWinningSets()
				Expect(err).NotTo(HaveOccurred())
				Expect(sets).To(Equal([]lottery.WinningNumberSet{currentSet(), previousSet()}))
			})

			It("replaces it wholesale on the next save", func() {
				Expect(db.SaveWinningSets([]lottery.WinningNumberSet{newerSet()})).To(Succeed())
				sets, err := db.LoadWinningSets()
				Expect(err).NotTo(HaveOccurred())
				Expect(sets).To(HaveLen(1))
				Expect(sets[0].Period).To(Equal("113年 11-12月"))
			})

			It("survives reopening the file", func() {
				Expect(db.Close()).To(Succeed())
				var err error
				db, err = NewBoltDB(dbPath)
				Expect(err).NotTo(HaveOccurred())
				sets, err := db.LoadWinningSets()
				Expect(err).NotTo(HaveOccurred())
				Expect(sets).To(HaveLen(2))
			})
		})
	})

	Describe("winning records", func() {
		var record *WinningRecord

		BeforeEach(func() {
			record = &WinningRecord{
				ID:        "rec-1",
				Number:    "12345678",
				Period:    "113年 09-10月",
				Tier:      lottery.TierSpecial,
				Amount:    10_000_000,
				CreatedAt: time.Date(2024, 11, 26, 10, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveWinningRecord(record)).To(Succeed())
		})

		It("lists saved records", func() {
			records, err := db.ListWinningRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Tier).To(Equal(lottery.TierSpecial))
			Expect(records[0].CreatedAt.Equal(record.CreatedAt)).To(BeTrue())
		})

		It("clears all records", func() {
			Expect(db.ClearWinningRecords()).To(Succeed())
			records, err := db.ListWinningRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("accepts new records after clearing", func() {
			Expect(db.ClearWinningRecords()).To(Succeed())
			Expect(db.SaveWinningRecord(record)).To(Succeed())
			records, err := db.ListWinningRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})

	Describe("pending receipts", func() {
		BeforeEach(func() {
			Expect(db.SavePendingReceipt(&PendingReceipt{ID: "p-1", Number: "123", Period: "113年 11-12月"})).To(Succeed())
			Expect(db.SavePendingReceipt(&PendingReceipt{ID: "p-2", Number: "456", Period: "113年 11-12月"})).To(Succeed())
		})

		It("lists saved receipts", func() {
			receipts, err := db.ListPendingReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
		})

		It("deletes one receipt", func() {
			Expect(db.DeletePendingReceipt("p-1")).To(Succeed())
			receipts, err := db.ListPendingReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("p-2"))
		})

		It("returns an error deleting an unknown receipt", func() {
			Expect(db.DeletePendingReceipt("missing")).To(MatchError(ContainSubstring("pending receipt not found")))
		})
	})
})
