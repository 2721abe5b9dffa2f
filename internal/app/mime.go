package app

import (
	"log"
	"mime"
)

func init() {
	ensureMimeType(".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	ensureMimeType(".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ensureMimeType(".pdf", "application/pdf")
	ensureMimeType(".xml", "application/xml")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
