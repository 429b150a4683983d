package handlers

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"designbridge/internal/middleware"
)

// User facing messages. The English text doubles as the catalog key.
const (
	msgInvalidPayload     = "invalid payload"
	msgMissingUser        = "missing user context"
	msgNotConnected       = "design account is not connected, log in again"
	msgUnknownState       = "login expired or was already used, start again"
	msgLoginDenied        = "login was denied: %s"
	msgExchangeFailed     = "could not complete login with the design platform"
	msgExportNotFound     = "export request not found"
	msgInternal           = "internal error"
	msgPersistFailed      = "failed to record export request"
	msgDesignAPIRejected  = "the design platform rejected the request"
	msgCodeRequired       = "code and state are required"
	msgInvalidDesignInput = "invalid %s: %s"
)

var messages = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	id := language.Indonesian
	_ = b.SetString(id, msgInvalidPayload, "payload tidak valid")
	_ = b.SetString(id, msgMissingUser, "konteks pengguna tidak ditemukan")
	_ = b.SetString(id, msgNotConnected, "akun desain belum terhubung, silakan masuk kembali")
	_ = b.SetString(id, msgUnknownState, "sesi masuk kedaluwarsa atau sudah dipakai, silakan ulangi")
	_ = b.SetString(id, msgLoginDenied, "proses masuk ditolak: %s")
	_ = b.SetString(id, msgExchangeFailed, "gagal menyelesaikan proses masuk dengan platform desain")
	_ = b.SetString(id, msgExportNotFound, "permintaan ekspor tidak ditemukan")
	_ = b.SetString(id, msgInternal, "terjadi kesalahan internal")
	_ = b.SetString(id, msgPersistFailed, "gagal menyimpan permintaan ekspor")
	_ = b.SetString(id, msgDesignAPIRejected, "platform desain menolak permintaan")
	_ = b.SetString(id, msgCodeRequired, "code dan state wajib diisi")
	_ = b.SetString(id, msgInvalidDesignInput, "%s tidak valid: %s")
	return b
}()

// tr renders key in the locale chosen by middleware.I18N.
func tr(r *http.Request, key string, args ...any) string {
	tag := language.Make(middleware.LocaleFromContext(r.Context()))
	p := message.NewPrinter(tag, message.Catalog(messages))
	return p.Sprintf(key, args...)
}
