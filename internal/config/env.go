package config

// Environment variables recognised by ApplyEnv.
const (
	EnvEnvironment     = "DOCUFLOW_ENV"
	EnvDefaultRole     = "DOCUFLOW_DEFAULT_ROLE"
	EnvAuditDir        = "DOCUFLOW_AUDIT_LOG_DIR"
	EnvAuditFile       = "DOCUFLOW_AUDIT_LOG_FILE"
	EnvDataDir         = "DOCUFLOW_FAISS_DATA_DIR"
	EnvIndexFile       = "DOCUFLOW_FAISS_INDEX_FILE"
	EnvMetadataFile    = "DOCUFLOW_FAISS_METADATA_FILE"
	EnvEmbeddingAPIKey = "DOCUFLOW_EMBEDDING_API_KEY"
)

// ApplyEnv overrides cfg with any DOCUFLOW_* variables that lookup finds.
// Pass os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvEnvironment, &cfg.Environment)
	set(EnvDefaultRole, &cfg.Security.DefaultRole)
	set(EnvAuditDir, &cfg.Audit.Dir)
	set(EnvAuditFile, &cfg.Audit.File)
	set(EnvDataDir, &cfg.Storage.DataDir)
	set(EnvIndexFile, &cfg.Storage.IndexFile)
	set(EnvMetadataFile, &cfg.Storage.MetadataFile)
	set(EnvEmbeddingAPIKey, &cfg.Embedding.APIKey)
}
