package e2e

import "fmt"

// CorpusDocument is one uploaded PDF in the end-to-end corpus.
type CorpusDocument struct {
	ID           string
	TenantID     string
	DocumentType string
	Filename     string
	Content      string
}

// Key returns the upload key of the document.
func (d CorpusDocument) Key() string {
	return UploadKey(d.TenantID, d.DocumentType, d.Filename)
}

// QueryCase is a question whose best match must be ExpectedKey within TenantID.
type QueryCase struct {
	TenantID    string
	Question    string
	ExpectedKey string
	Description string
}

// Corpus holds documents for several tenants and the questions asked against them.
type Corpus struct {
	Tenants   []string
	Documents []CorpusDocument
	Cases     []QueryCase
}

var corpusTopics = []struct {
	docType string
	name    string
	content string
}{
	{"policies", "refunds", "Refunds are accepted within 30 days of purchase when the original receipt is presented."},
	{"policies", "shipping", "Orders ship within two business days and tracking numbers are sent by email."},
	{"policies", "returns", "Returned items must be unused and in their original packaging to qualify for credit."},
	{"contracts", "support", "The support contract covers business hours assistance with a four hour response target."},
	{"contracts", "license", "The software license grants one production deployment per purchased seat."},
	{"contracts", "renewal", "Contracts renew automatically for twelve months unless cancelled sixty days in advance."},
	{"manuals", "install", "Install the agent by running the setup script with administrator privileges."},
	{"manuals", "backup", "Nightly backups are retained for fourteen days and can be restored from the console."},
	{"manuals", "alerts", "Alerts are delivered to the on call rotation through the paging integration."},
	{"invoices", "terms", "Invoices are payable within forty five days and late payments accrue two percent interest."},
}

// BuildCorpus returns the same documents uploaded by three tenants, so that every
// question has an identical twin in the other tenants' collections.
func BuildCorpus() *Corpus {
	tenants := []string{"acme", "globex", "initech"}
	c := &Corpus{Tenants: tenants}
	for _, tenant := range tenants {
		for _, topic := range corpusTopics {
			doc := CorpusDocument{
				ID:           fmt.Sprintf("%s-%s", tenant, topic.name),
				TenantID:     tenant,
				DocumentType: topic.docType,
				Filename:     topic.name + ".pdf",
				Content:      topic.content,
			}
			c.Documents = append(c.Documents, doc)
			c.Cases = append(c.Cases, QueryCase{
				TenantID:    tenant,
				Question:    topic.content,
				ExpectedKey: doc.Key(),
				Description: doc.ID,
			})
		}
	}
	return c
}

// DocumentsFor returns the documents uploaded by tenantID.
func (c *Corpus) DocumentsFor(tenantID string) []CorpusDocument {
	var out []CorpusDocument
	for _, d := range c.Documents {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out
}
