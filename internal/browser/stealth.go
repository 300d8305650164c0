package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// StealthScript papers over the headless-browser tells that the WAF's
// fingerprinting script checks beyond what go-rod/stealth already covers.
const StealthScript = `
(function() {
    'use strict';

    // navigator.webdriver is the first thing every bot check looks at.
    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    try {
        delete Object.getPrototypeOf(navigator).webdriver;
    } catch (e) {}

    // Headless Chrome ships an empty plugins array.
    try {
        if (navigator.plugins.length === 0) {
            const plugin = Object.create(Plugin.prototype);
            Object.defineProperties(plugin, {
                name: { value: 'Chrome PDF Viewer', enumerable: true },
                description: { value: 'Portable Document Format', enumerable: true },
                filename: { value: 'internal-pdf-viewer', enumerable: true },
                length: { value: 1, enumerable: true }
            });
            const pluginArray = Object.create(PluginArray.prototype);
            pluginArray[0] = plugin;
            Object.defineProperty(pluginArray, 'length', { value: 1 });
            Object.defineProperty(pluginArray, 'item', { value: (i) => pluginArray[i] || null });
            Object.defineProperty(pluginArray, 'namedItem', { value: (n) => pluginArray[n] || null });
            Object.defineProperty(navigator, 'plugins', {
                get: () => pluginArray,
                configurable: true
            });
        }
    } catch (e) {}

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['en-US', 'en']),
        configurable: true
    });

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', {
            value: { runtime: {} },
            writable: true,
            enumerable: true,
            configurable: false
        });
    }

    if (navigator.hardwareConcurrency === 0 || navigator.hardwareConcurrency === undefined) {
        Object.defineProperty(navigator, 'hardwareConcurrency', {
            get: () => 4,
            configurable: true
        });
    }
})();
`

// CreateStealthPage creates a new page with stealth patches applied.
// go-rod/stealth embeds the puppeteer-extra-plugin-stealth evasions; the
// custom script above is layered on top.
func CreateStealthPage(browser *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, err
	}

	if _, err := page.EvalOnNewDocument(StealthScript); err != nil {
		page.Close()
		return nil, err
	}

	return page, nil
}
