package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CERTIFICATE TABLE
    -- ==========================================================================
    -- One row per atestado. The records array is replaced whole on every
    -- pipeline re-run, never patched element by element.
    DEFINE TABLE IF NOT EXISTS certificate SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON certificate TYPE string;
    DEFINE FIELD IF NOT EXISTS issuer ON certificate TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS source_path ON certificate TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS records ON certificate TYPE array<object> FLEXIBLE;
    -- Note: Must REMOVE then DEFINE to ensure FLEXIBLE is set (IF NOT EXISTS won't update existing field)
    REMOVE FIELD IF EXISTS records.* ON certificate;
    DEFINE FIELD records.* ON certificate TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS quality ON certificate TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS strategy ON certificate TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS diagnostics ON certificate TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created ON certificate TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON certificate TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS certificate_title ON certificate FIELDS title;
    DEFINE INDEX IF NOT EXISTS certificate_source_path ON certificate FIELDS source_path;

    -- ==========================================================================
    -- EXTRACTION_JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS extraction_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_type ON extraction_job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON extraction_job TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON extraction_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS dir_path ON extraction_job TYPE string;
    DEFINE FIELD IF NOT EXISTS sources ON extraction_job TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS options ON extraction_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS total ON extraction_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS progress ON extraction_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS result ON extraction_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON extraction_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON extraction_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON extraction_job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS extraction_job_status ON extraction_job FIELDS status;
    DEFINE INDEX IF NOT EXISTS extraction_job_started ON extraction_job FIELDS started_at;
`
