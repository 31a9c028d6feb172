package models

// Attachment is a report document ready to be sent.
type Attachment struct {
	ReportName string
	FileName   string
	Data       []byte
}

// Task is one delivery of an attachment to one user over one method.
// Result receives the outcome once a worker has processed it.
type Task struct {
	Report     Report
	User       User
	Method     DeliveryMethod
	Attachment *Attachment
	Result     chan<- DeliveryLog
}
