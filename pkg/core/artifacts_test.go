package core

import "testing"

func TestDefaultArtifactConfig(t *testing.T) {
	cfg := DefaultArtifactConfig()

	if !cfg.CaptureOnFailure {
		t.Error("CaptureOnFailure should default to true")
	}
	if cfg.CaptureOnSuccess {
		t.Error("CaptureOnSuccess should default to false")
	}
	if !cfg.Screenshot || !cfg.DOM {
		t.Error("Screenshot and DOM should default to true")
	}
	if cfg.ConsoleLog {
		t.Error("ConsoleLog should default to false")
	}
}

func TestArtifactConfigShouldCapture(t *testing.T) {
	cfg := DefaultArtifactConfig()

	if !cfg.ShouldCapture(StatusFailed) {
		t.Error("should capture on failed")
	}
	if !cfg.ShouldCapture(StatusErrored) {
		t.Error("should capture on errored")
	}
	if cfg.ShouldCapture(StatusPassed) {
		t.Error("should not capture on passed by default")
	}
	if cfg.ShouldCapture(StatusSkipped) {
		t.Error("should not capture on skipped")
	}

	cfg.CaptureOnSuccess = true
	if !cfg.ShouldCapture(StatusPassed) {
		t.Error("should capture on passed when CaptureOnSuccess is set")
	}
}

func TestNewScreenshotAttachment(t *testing.T) {
	data := []byte{0x89, 0x50}
	att := NewScreenshotAttachment("assets/flow-000/cmd-001-after.png", data)

	if att.Name != AttachmentScreenshot {
		t.Errorf("Name = %q, want %q", att.Name, AttachmentScreenshot)
	}
	if att.ContentType != ContentTypePNG {
		t.Errorf("ContentType = %q, want %q", att.ContentType, ContentTypePNG)
	}
	if len(att.Body) != 2 {
		t.Errorf("Body length = %d, want 2", len(att.Body))
	}
}

func TestNewDOMAttachment(t *testing.T) {
	att := NewDOMAttachment("assets/flow-000/cmd-001-dom.html", []byte("<html></html>"))

	if att.Name != AttachmentDOM {
		t.Errorf("Name = %q, want %q", att.Name, AttachmentDOM)
	}
	if att.ContentType != ContentTypeHTML {
		t.Errorf("ContentType = %q, want %q", att.ContentType, ContentTypeHTML)
	}
}
