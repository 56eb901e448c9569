package conflict

// AuxSource declares one auxiliary affiliate table scanned for secondary
// evidence. The tables are keyed inconsistently in the host schema, so each
// source states its own key column; all of them resolve through
// affiliateid -> affiliate record -> client. Declaring the variants here
// replaces per-table branching in the scan loop.
type AuxSource struct {
	Table     string
	KeyColumn string
}

const (
	sourceLegacyColumn = "legacy referrer_id column"
	sourceClaimsTable  = "affiliate accounts table"
)

// auxSources lists the auxiliary tables in scan order. Both are optional;
// availability is decided once at startup by DetectCapabilities.
var auxSources = []AuxSource{
	{Table: "tblaffiliates_referrers", KeyColumn: "referrer"},
	{Table: "tblaffiliateshistory", KeyColumn: "clientid"},
}

func (a AuxSource) description() string {
	return a.Table + " table"
}
