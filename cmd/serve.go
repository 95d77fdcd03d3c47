package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/cleaner"
	"github.com/octophi/ingestor/internal/mapper"
	"github.com/octophi/ingestor/internal/schema"
)

var serveSchemaName string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server",
	Long:  "Serves a cleaning preview endpoint. Uploaded files are classified and normalized in memory; nothing is written to the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := loadSchema(serveSchemaName)
		if err != nil {
			return err
		}
		m, err := buildMapper(s, serveSchemaName, "", "")
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(s, m, cfg.Ingest.AppendixExclude),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("preview server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

// preview is the response shape of POST /preview.
type preview struct {
	UploadTag  string            `json:"upload_tag"`
	Leads      int               `json:"leads"`
	Owners     int               `json:"owners"`
	Appendix   int               `json:"appendix"`
	Mapping    map[string]string `json:"mapping"`
	Problems   []string          `json:"problems,omitempty"`
	SampleLead map[string]string `json:"sample_lead,omitempty"`
}

// newRouter wires the preview routes. The handler set never writes to the
// store.
func newRouter(s *schema.Schema, m mapper.Mapper, excludeAppendix []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})

	r.Post("/preview", func(w http.ResponseWriter, req *http.Request) {
		file, header, err := req.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"multipart field 'file' is required"}`, http.StatusBadRequest)
			return
		}
		defer file.Close() //nolint:errcheck

		tmp, err := os.CreateTemp("", "preview-*"+filepath.Ext(header.Filename))
		if err != nil {
			http.Error(w, `{"error":"temp file"}`, http.StatusInternalServerError)
			return
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close() //nolint:errcheck
			http.Error(w, `{"error":"read upload"}`, http.StatusInternalServerError)
			return
		}
		tmp.Close() //nolint:errcheck

		reqMapper := m
		if tf, _, err := req.FormFile("template"); err == nil {
			defer tf.Close() //nolint:errcheck
			t, problems, err := templateFromUpload(s, tf)
			if err != nil {
				http.Error(w, `{"error":"could not read template"}`, http.StatusUnprocessableEntity)
				return
			}
			if len(problems) > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(map[string][]string{"problems": problems}) //nolint:errcheck
				return
			}
			reqMapper = t
		}

		cl := cleaner.New(s, reqMapper, cleaner.Options{ExcludeAppendix: excludeAppendix})
		res, err := cl.Clean(tmp.Name(), defaultUploadTag())
		if err != nil {
			zap.L().Warn("preview failed", zap.Error(err))
			http.Error(w, `{"error":"could not clean file"}`, http.StatusUnprocessableEntity)
			return
		}

		out := preview{
			UploadTag: res.UploadTag,
			Leads:     len(res.Leads.Rows),
			Owners:    len(res.Owners.Rows),
			Appendix:  len(res.Appendix),
			Mapping:   describeMapping(s, res),
			Problems:  cleaner.ValidateRequired(s, res),
		}
		if len(res.Leads.Rows) > 0 {
			out.SampleLead = res.Leads.Rows[0]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out) //nolint:errcheck
	})

	return r
}

// templateFromUpload parses an uploaded mapping template and checks it
// against the schema.
func templateFromUpload(s *schema.Schema, r io.Reader) (*mapper.Template, []string, error) {
	tmp, err := os.CreateTemp("", "template-*.csv")
	if err != nil {
		return nil, nil, err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close() //nolint:errcheck
		return nil, nil, err
	}
	tmp.Close() //nolint:errcheck

	t, err := mapper.LoadTemplate(tmp.Name())
	if err != nil {
		return nil, nil, err
	}
	return t, mapper.ValidateTemplate(s, t), nil
}

// describeMapping reports where each lead field's data came from, for
// operator review before a real ingest.
func describeMapping(s *schema.Schema, res *cleaner.Result) map[string]string {
	out := make(map[string]string)
	for _, rs := range []cleaner.RecordSet{res.Leads, res.Owners} {
		for _, f := range rs.Fields {
			if rs.Present[f] {
				out[f] = "mapped"
			} else if s.DerivedFrom(rs.Entity, f) != "" {
				out[f] = "derived"
			} else {
				out[f] = "absent"
			}
		}
	}
	return out
}

func init() {
	serveCmd.Flags().StringVar(&serveSchemaName, "schema", "", "schema name (default from config)")
	rootCmd.AddCommand(serveCmd)
}
