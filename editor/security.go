package editor

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

// Permissions granted to readers who open a protected file with the user
// password.
type Permissions struct {
	Print  bool
	Copy   bool
	Modify bool
}

func (p Permissions) flags() model.PermissionFlags {
	f := model.PermissionsNone
	if p.Print {
		f |= model.PermissionPrintRev2 | model.PermissionPrintRev3
	}
	if p.Copy {
		f |= model.PermissionExtract | model.PermissionExtractRev3
	}
	if p.Modify {
		f |= model.PermissionModify | model.PermissionModAnnFillForm | model.PermissionFillRev3 | model.PermissionAssembleRev3
	}
	return f
}

// Encrypt protects doc with AES-256. password opens the document with
// perms; the owner password is random and never handed out, so no reader
// can lift the restrictions.
func Encrypt(doc *document.Document, password string, perms Permissions) ([]byte, error) {
	if password == "" {
		return nil, docerr.New(docerr.Validation, "editor.encrypt", "password is empty")
	}
	if doc.Encrypted() {
		return nil, docerr.New(docerr.Validation, "editor.encrypt", "%s is already encrypted", doc.Name)
	}
	owner, err := ownerPassword()
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "editor.encrypt", err)
	}
	conf := model.NewAESConfiguration(password, owner, 256)
	conf.ValidationMode = model.ValidationRelaxed
	conf.Permissions = perms.flags()
	var buf bytes.Buffer
	if err := api.Encrypt(doc.Reader(), &buf, conf); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "editor.encrypt", err)
	}
	return buf.Bytes(), nil
}

// Decrypt removes the encryption of doc. A password that opens neither the
// user nor the owner role yields docerr.WrongPassword.
func Decrypt(doc *document.Document, password string) ([]byte, error) {
	if !doc.Encrypted() {
		return nil, docerr.New(docerr.Validation, "editor.decrypt", "%s is not encrypted", doc.Name)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	var buf bytes.Buffer
	if err := api.Decrypt(doc.Reader(), &buf, conf); err != nil {
		return nil, document.ClassifyRead("editor.decrypt", err)
	}
	return buf.Bytes(), nil
}

func ownerPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
