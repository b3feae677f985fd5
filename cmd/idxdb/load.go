package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adfharrison1/idxdb/pkg/api"
)

// person is a generated contact document.
type person struct {
	Name struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"name"`
	Email  string `json:"email,omitempty"`
	Gender string `json:"gender"`
	Dob    struct {
		Date map[string]string `json:"date"`
		Age  int               `json:"age"`
	} `json:"dob"`
	Description string `json:"description"`
}

var loadWords = []string{
	"awesome", "quiet", "curious", "reliable", "creative", "patient",
	"traveller", "gardener", "reader", "cyclist", "cook", "painter",
}

func randomName(r *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[r.IntN(len(letters))]
	}
	name[0] -= 'a' - 'A'
	return string(name)
}

func randomPerson(r *rand.Rand, now time.Time) person {
	var p person
	p.Name.First = randomName(r)
	p.Name.Last = randomName(r)
	if r.IntN(10) != 0 {
		p.Email = strings.ToLower(p.Name.First+"."+p.Name.Last) + "@example.com"
	}
	p.Gender = []string{"female", "male"}[r.IntN(2)]
	p.Dob.Age = r.IntN(82) + 18
	p.Dob.Date = map[string]string{"$date": now.AddDate(-p.Dob.Age, 0, -r.IntN(365)).Format(time.RFC3339)}
	p.Description = fmt.Sprintf("%s %s and %s", loadWords[r.IntN(len(loadWords))],
		loadWords[r.IntN(len(loadWords))], loadWords[r.IntN(len(loadWords))])
	return p
}

func loadCmd() *cobra.Command {
	var (
		serverURL  string
		collection string
		count      int
		batchSize  int
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "insert generated contact documents into a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 || batchSize <= 0 || batchSize > api.MaxBatchSize {
				return fmt.Errorf("--count must be positive and --batch between 1 and %d", api.MaxBatchSize)
			}
			r := rand.New(rand.NewPCG(seed, seed))
			out := cmd.OutOrStdout()
			client := &http.Client{Timeout: 30 * time.Second}
			url := strings.TrimSuffix(serverURL, "/") + "/collections/" + collection + "/batch"

			start := time.Now()
			inserted, rejected := 0, 0
			for sent := 0; sent < count; {
				n := min(batchSize, count-sent)
				docs := make([]person, n)
				for i := range docs {
					docs[i] = randomPerson(r, start)
				}
				resp, err := postBatch(cmd, client, url, docs)
				if err != nil {
					return err
				}
				inserted += resp.InsertedCount
				rejected += len(resp.Errors)
				sent += n

				rate := float64(sent) / time.Since(start).Seconds()
				fmt.Fprintf(out, "Progress: %d/%d documents (%.1f%%) - Rate: %.1f docs/sec\n",
					sent, count, float64(sent)/float64(count)*100, rate)
			}

			fmt.Fprintf(out, "Inserted %d document(s), %d rejected, in %v\n", inserted, rejected, time.Since(start))
			if rejected > 0 {
				return fmt.Errorf("%d document(s) rejected", rejected)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&collection, "collection", "contacts", "target collection")
	cmd.Flags().IntVarP(&count, "count", "n", 1000, "documents to insert")
	cmd.Flags().IntVar(&batchSize, "batch", 100, "documents per request")
	cmd.Flags().Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	return cmd
}

func postBatch(cmd *cobra.Command, client *http.Client, url string, docs []person) (*api.BatchInsertResponse, error) {
	body, err := json.Marshal(map[string]any{"documents": docs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMultiStatus {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out api.BatchInsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
