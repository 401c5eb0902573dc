package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CourseBay API",
        "description": "Online course marketplace: catalog, enrollment, payments and coursework",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "auth", "description": "Signup, login and token management"},
        {"name": "courses", "description": "Catalog and instructor course management"},
        {"name": "lessons", "description": "Course content"},
        {"name": "enrollments", "description": "Student enrollment and progress"},
        {"name": "payments", "description": "Checkout, webhook and receipts"},
        {"name": "assignments", "description": "Coursework, submissions and feedback"},
        {"name": "admin", "description": "Account and session administration"}
    ],
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new student account",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate and receive tokens",
                "responses": {
                    "200": {"description": "Token pair"},
                    "401": {"description": "Invalid credentials"},
                    "403": {"description": "Email not verified"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["courses"],
                "summary": "List published courses",
                "responses": {
                    "200": {"description": "Course page"}
                }
            },
            "post": {
                "tags": ["courses"],
                "summary": "Create a draft course",
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Requires instructor role"}
                }
            }
        },
        "/courses/{id}/lessons": {
            "get": {
                "tags": ["lessons"],
                "summary": "List a course's lessons",
                "responses": {
                    "200": {"description": "Lessons"},
                    "402": {"description": "Payment required"},
                    "403": {"description": "Not enrolled"},
                    "404": {"description": "Course not found or unpublished"}
                }
            }
        },
        "/courses/{id}/enroll": {
            "post": {
                "tags": ["enrollments"],
                "summary": "Enroll in a course",
                "responses": {
                    "201": {"description": "Enrolled"},
                    "402": {"description": "Paid course requires payment"},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/courses/{id}/checkout": {
            "post": {
                "tags": ["payments"],
                "summary": "Open a payment checkout session",
                "responses": {
                    "201": {"description": "Pending payment with checkout URL"},
                    "400": {"description": "Free course"},
                    "409": {"description": "Already enrolled or paid"}
                }
            }
        },
        "/webhooks/payments": {
            "post": {
                "tags": ["payments"],
                "summary": "Gateway settlement notification",
                "responses": {
                    "200": {"description": "Processed or acknowledged"},
                    "401": {"description": "Invalid signature"}
                }
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["payments"],
                "summary": "Download a PDF receipt",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "404": {"description": "Payment not found"}
                }
            }
        },
        "/submissions/{id}/feedback": {
            "get": {
                "tags": ["assignments"],
                "summary": "Read feedback on a submission",
                "responses": {
                    "200": {"description": "Feedback"},
                    "403": {"description": "Feedback is private"}
                }
            }
        },
        "/admin/users/{id}/force-logout": {
            "post": {
                "tags": ["admin"],
                "summary": "Revoke all of a user's sessions",
                "responses": {
                    "200": {"description": "Sessions dropped"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
