package services

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"
)

// ComplaintDocument carries the fields rendered onto a complaint filing form.
type ComplaintDocument struct {
	Reference        string
	Name             string
	FatherName       string
	Age              int
	Phone            string
	Email            string
	Address          string
	ComplaintType    string
	IncidentDate     string
	IncidentLocation string
	Description      string
	ApplicableLaws   string
	PoliceStation    string
	GeneratedAt      time.Time
}

// RTIDocument carries the fields rendered onto an RTI application.
type RTIDocument struct {
	Reference         string
	Name              string
	Phone             string
	Email             string
	Address           string
	Department        string
	InformationSought string
	Purpose           string
	GeneratedAt       time.Time
}

// TrafficDocument carries the fields rendered onto a violation report.
type TrafficDocument struct {
	Reference     string
	Name          string
	Phone         string
	VehicleNumber string
	ViolationType string
	Location      string
	Description   string
	GeneratedAt   time.Time
}

var complaintTemplate = template.Must(template.New("complaint").Parse(`POLICE COMPLAINT
Reference: {{.Reference}}
Generated: {{.GeneratedAt.Format "02 Jan 2006 15:04 MST"}}

To,
The Station House Officer
{{.PoliceStation}}

COMPLAINANT DETAILS
Name:            {{.Name}}
Father's Name:   {{.FatherName}}
Age:             {{.Age}}
Phone:           {{.Phone}}
Email:           {{.Email}}
Address:         {{.Address}}

INCIDENT DETAILS
Type:            {{.ComplaintType}}
Date:            {{.IncidentDate}}
Location:        {{.IncidentLocation}}

DESCRIPTION
{{.Description}}

APPLICABLE LAW SECTIONS
{{.ApplicableLaws}}

DECLARATION
I hereby declare that the information given above is true to the best of my
knowledge and belief. Aadhaar verification has been recorded against this
complaint for police review.

Signature: ____________________

Next steps: visit the police station named above with this form, carry
evidence and witness details, and note the FIR number after filing.
Emergency: 100 | 112
`))

var rtiTemplate = template.Must(template.New("rti").Parse(`APPLICATION UNDER THE RIGHT TO INFORMATION ACT, 2005
Reference: {{.Reference}}
Generated: {{.GeneratedAt.Format "02 Jan 2006 15:04 MST"}}

To,
The Public Information Officer
{{.Department}}

APPLICANT DETAILS
Name:    {{.Name}}
Phone:   {{.Phone}}
Email:   {{.Email}}
Address: {{.Address}}

INFORMATION SOUGHT
{{.InformationSought}}

PURPOSE
{{.Purpose}}

I state that the information sought does not fall within the restrictions
contained in Section 8 and 9 of the RTI Act and to the best of my knowledge
it pertains to your office. The prescribed application fee is enclosed.

Signature: ____________________
`))

var trafficTemplate = template.Must(template.New("traffic").Parse(`TRAFFIC VIOLATION REPORT
Reference: {{.Reference}}
Generated: {{.GeneratedAt.Format "02 Jan 2006 15:04 MST"}}

REPORTER DETAILS
Name:  {{.Name}}
Phone: {{.Phone}}

VIOLATION DETAILS
Vehicle Number: {{.VehicleNumber}}
Violation:      {{.ViolationType}}
Location:       {{.Location}}

DESCRIPTION
{{.Description}}

This report was submitted through the CivicAid citizen portal after phone
verification. Photographic evidence, when provided, is stored against the
same reference.
`))

// DocumentService renders filing documents into the storage directory.
type DocumentService struct {
	storageDir string
}

// NewDocumentService creates a new document service rooted at storageDir.
func NewDocumentService(storageDir string) *DocumentService {
	return &DocumentService{storageDir: storageDir}
}

// RenderComplaint writes the complaint filing document and returns its path.
func (s *DocumentService) RenderComplaint(doc ComplaintDocument) (string, error) {
	return s.render("complaints", doc.Reference, complaintTemplate, doc)
}

// RenderRTI writes the RTI application document and returns its path.
func (s *DocumentService) RenderRTI(doc RTIDocument) (string, error) {
	return s.render("rti", doc.Reference, rtiTemplate, doc)
}

// RenderTraffic writes the violation report document and returns its path.
func (s *DocumentService) RenderTraffic(doc TrafficDocument) (string, error) {
	return s.render("traffic_violations", doc.Reference, trafficTemplate, doc)
}

func (s *DocumentService) render(subdir, reference string, tmpl *template.Template, data any) (string, error) {
	dir := filepath.Join(s.storageDir, subdir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create document dir: %w", err)
	}

	path := filepath.Join(dir, reference+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return path, nil
}
