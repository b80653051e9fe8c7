package checker

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-checker/internal/lottery"
)

var anyPath = regexp.MustCompile(".*")

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		cloud       *mockCloud
		service     *Service
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, anyPath, server.Handler().ServeHTTP)
		}
	}

	do := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, ghttpServer.URL()+path, reader)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		cloud = &mockCloud{}
		service = NewServiceWithDeps(db, scanner, Sources{Cloud: cloud}, &mockNotifier{}, &mockIDGenerator{},
			&mockTimeSource{now: time.Date(2024, 11, 26, 10, 0, 0, 0, time.UTC)})
		service.ReplaceSets([]lottery.WinningNumberSet{currentSet(), previousSet()})
		auth = BasicAuth{}
		ghttpServer = nil
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("GET /", func() {
		It("serves the HTML interface", func() {
			resp := do("GET", "/", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("統一發票對獎"))
		})

		It("rejects other methods", func() {
			resp := do("POST", "/", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do("OPTIONS", "/api/check", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		It("rejects requests without credentials", func() {
			resp := do("GET", "/api/periods", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/periods", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "pass")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a wrong password", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/periods", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("periods and selection", func() {
		It("lists known periods with the selection", func() {
			var body periodsResponse
			decode(do("GET", "/api/periods", nil), &body)
			Expect(body.Periods).To(HaveLen(2))
			Expect(body.Selection).To(Equal(lottery.Selection(0)))
		})

		It("switches the selection", func() {
			resp := do("PUT", "/api/selection", map[string]int{"selection": -1})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
			Expect(service.Selection()).To(Equal(lottery.MergeAll))
		})

		It("rejects an out-of-range selection", func() {
			resp := do("PUT", "/api/selection", map[string]int{"selection": 5})
			var body map[string]string
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			decode(resp, &body)
			Expect(body["error"]).To(Equal(ErrSelectionOutOfRange.Error()))
		})

		It("rejects a missing selection", func() {
			resp := do("PUT", "/api/selection", map[string]string{})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("lists the next periods", func() {
			var labels []string
			decode(do("GET", "/api/next-periods", nil), &labels)
			Expect(labels).To(Equal([]string{"113年 11-12月", "114年 01-02月"}))
		})
	})

	Describe("POST /api/check", func() {
		It("returns the prize result", func() {
			resp := do("POST", "/api/check", numberRequest{Number: "12345678"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			var result lottery.PrizeResult
			decode(resp, &result)
			Expect(result.IsWinner).To(BeTrue())
			Expect(result.Tier).To(Equal(lottery.TierSpecial))
		})

		It("reports malformed numbers in-band", func() {
			var result lottery.PrizeResult
			decode(do("POST", "/api/check", numberRequest{Number: "12"}), &result)
			Expect(result.Tier).To(Equal(lottery.TierInvalidFormat))
		})

		It("rejects invalid JSON", func() {
			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/check", bytes.NewBufferString("{"))
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/quick-check", func() {
		It("returns the quick-check result", func() {
			var result lottery.QuickCheckResult
			decode(do("POST", "/api/quick-check", suffixRequest{Suffix: "999"}), &result)
			Expect(result.Potential).To(BeTrue())
		})
	})

	Describe("POST /api/keypad", func() {
		It("returns the buffer and the check once full", func() {
			do("POST", "/api/keypad", keyRequest{Key: "8"}).Body.Close()
			do("POST", "/api/keypad", keyRequest{Key: "8"}).Body.Close()
			var body bufferResponse
			decode(do("POST", "/api/keypad", keyRequest{Key: "8"}), &body)
			Expect(body.Buffer).To(Equal("888"))
			Expect(body.Result).NotTo(BeNil())
			Expect(body.Result.Potential).To(BeTrue())
		})

		It("rejects unknown keys", func() {
			resp := do("POST", "/api/keypad", keyRequest{Key: "enter"})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/voice", func() {
		It("normalizes spoken digits", func() {
			var body bufferResponse
			decode(do("POST", "/api/voice", voiceRequest{Text: "九九九"}), &body)
			Expect(body.Buffer).To(Equal("999"))
			Expect(body.Result.Potential).To(BeTrue())
		})
	})

	Describe("POST /api/scan", func() {
		upload := func(withFile bool) *http.Response {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			if withFile {
				header := make(textproto.MIMEHeader)
				header.Set("Content-Disposition", `form-data; name="file"; filename="invoice.jpg"`)
				header.Set("Content-Type", "image/jpeg")
				part, err := writer.CreatePart(header)
				Expect(err).NotTo(HaveOccurred())
				part.Write([]byte("fake image data"))
			}
			Expect(writer.Close()).To(Succeed())
			resp, err := http.Post(ghttpServer.URL()+"/api/scan", writer.FormDataContentType(), &buf)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("returns the scanned number and result", func() {
			resp := upload(true)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var outcome ScanOutcome
			decode(resp, &outcome)
			Expect(outcome.Number).To(Equal("12345678"))
			Expect(outcome.Result.Tier).To(Equal(lottery.TierSpecial))
		})

		It("requires a file", func() {
			resp := upload(false)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the scanner cannot read the invoice", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("scan error")
			})

			It("returns unprocessable entity", func() {
				resp := upload(true)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		When("no scanner is configured", func() {
			BeforeEach(func() {
				service = NewServiceWithDeps(db, nil, Sources{Cloud: cloud}, &mockNotifier{}, &mockIDGenerator{}, &mockTimeSource{})
				setupServer()
			})

			It("returns service unavailable", func() {
				resp := upload(true)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})
	})

	Describe("POST /api/qr", func() {
		It("checks the number in the payload", func() {
			var result lottery.PrizeResult
			decode(do("POST", "/api/qr", qrRequest{Payload: "AB87654321"}), &result)
			Expect(result.Tier).To(Equal(lottery.TierGrand))
		})

		It("rejects payloads without a number", func() {
			resp := do("POST", "/api/qr", qrRequest{Payload: "hello"})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/refresh", func() {
		It("returns the refresh outcome", func() {
			cloud.sets = []lottery.WinningNumberSet{newerSet()}
			var outcome RefreshOutcome
			decode(do("POST", "/api/refresh", nil), &outcome)
			Expect(outcome.Latest).To(Equal("113年 11-12月"))
		})

		It("reports upstream failures", func() {
			cloud.fetchErr = errors.New("cloud down")
			resp := do("POST", "/api/refresh", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("pending receipts", func() {
		It("creates, lists and deletes", func() {
			resp := do("POST", "/api/pending", pendingRequest{Number: "888", Period: "113年 09-10月"})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var receipt PendingReceipt
			decode(resp, &receipt)

			var views []PendingView
			decode(do("GET", "/api/pending", nil), &views)
			Expect(views).To(HaveLen(1))
			Expect(views[0].Status).To(Equal(PendingWin))

			resp = do("DELETE", "/api/pending/"+receipt.ID, nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.pending).To(BeEmpty())
		})

		It("rejects invalid numbers", func() {
			resp := do("POST", "/api/pending", pendingRequest{Number: "12345"})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns not found for unknown ids", func() {
			resp := do("DELETE", "/api/pending/missing", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns alerts once", func() {
			db.pending["a"] = &PendingReceipt{ID: "a", Number: "888", Period: "113年 09-10月"}
			var winners []PendingReceipt
			decode(do("GET", "/api/pending/alerts", nil), &winners)
			Expect(winners).To(HaveLen(1))
			decode(do("GET", "/api/pending/alerts", nil), &winners)
			Expect(winners).To(BeEmpty())
		})
	})

	Describe("history", func() {
		BeforeEach(func() {
			db.records["r"] = &WinningRecord{ID: "r", Number: "12345678", Tier: lottery.TierSpecial}
		})

		It("lists winning records", func() {
			var records []*WinningRecord
			decode(do("GET", "/api/history", nil), &records)
			Expect(records).To(HaveLen(1))
		})

		It("clears winning records", func() {
			resp := do("DELETE", "/api/history", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.records).To(BeEmpty())
		})

		It("returns server errors", func() {
			db.listRecordsErr = errors.New("db error")
			resp := do("GET", "/api/history", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("GET /metrics", func() {
		It("serves prometheus metrics", func() {
			resp := do("GET", "/metrics", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
