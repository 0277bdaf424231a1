package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PlanFab API",
        "description": "Production scheduling and order management for machine shops",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session info"},
        {"name": "Machines", "description": "Machine park management"},
        {"name": "Companies", "description": "Customer companies and their machine templates"},
        {"name": "Orders", "description": "Production orders and conflict resolution"},
        {"name": "Schedule", "description": "Flow-shop simulation, daily plans and exports"},
        {"name": "Holidays", "description": "Non-working day calendar"},
        {"name": "Shifts", "description": "Shift definitions"},
        {"name": "Products", "description": "Product catalog"},
        {"name": "Dashboard", "description": "Aggregated shop-floor overview"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/signup": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new operator account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/machines": {
            "get": {
                "tags": ["Machines"],
                "summary": "List machines",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Machines"],
                "summary": "Create machine",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveMachineRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/machines/{id}": {
            "get": {
                "tags": ["Machines"],
                "summary": "Get machine",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Machines"],
                "summary": "Update machine",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveMachineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Machines"],
                "summary": "Delete machine (admin only)",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No content"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/companies": {
            "get": {
                "tags": ["Companies"],
                "summary": "List companies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Companies"],
                "summary": "Create company",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveCompanyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/companies/{id}/schedule": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Simulate a schedule from a company's stored run configuration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid schedule configuration"}
                }
            }
        },
        "/orders": {
            "get": {
                "tags": ["Orders"],
                "summary": "List orders",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "machineId", "in": "query", "type": "string"},
                    {"name": "companyId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Orders"],
                "summary": "Create order with machine-conflict detection",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Machine conflict, body carries the conflicting orders"}
                }
            }
        },
        "/orders/resolve-conflicts": {
            "post": {
                "tags": ["Orders"],
                "summary": "Atomically apply end-date resolutions and create the new order",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveConflictRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Resolutions do not clear the conflict"}
                }
            }
        },
        "/orders/{id}/status": {
            "patch": {
                "tags": ["Orders"],
                "summary": "Update order status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateOrderStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}/daily-plan": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Per-day unit breakdown for an order",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/simulate": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Run a flow-shop feasibility simulation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SimulateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid schedule configuration"}
                }
            }
        },
        "/schedule/export": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Export a simulated schedule as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SimulateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/schedule/export-jobs": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Queue a schedule export for background rendering",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SimulateScheduleRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/export-jobs/{id}": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Poll an export job",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Download a rendered export via signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File attachment"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/holidays": {
            "get": {
                "tags": ["Holidays"],
                "summary": "List holidays",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Holidays"],
                "summary": "Upsert holiday",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveHolidayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shifts": {
            "get": {
                "tags": ["Shifts"],
                "summary": "List shifts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Shifts"],
                "summary": "Create shift",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveShiftRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/products": {
            "get": {
                "tags": ["Products"],
                "summary": "List products",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Products"],
                "summary": "Create product",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/overview": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Aggregated order, machine and company counts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SignupRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "SaveMachineRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "maintenance", "inactive"]},
                "units": {"type": "integer"},
                "timePerUnit": {"type": "integer"}
            },
            "required": ["name", "timePerUnit"]
        },
        "SaveCompanyRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "address": {"type": "string"},
                "gst": {"type": "string"},
                "quantity": {"type": "integer"},
                "startDateTime": {"type": "string", "format": "date-time"},
                "endDateTime": {"type": "string", "format": "date-time"},
                "dailyHours": {"type": "number"},
                "machines": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/MachineInput"}
                }
            },
            "required": ["name", "quantity", "startDateTime", "endDateTime", "dailyHours", "machines"]
        },
        "SaveHolidayRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "description": {"type": "string"}
            },
            "required": ["date"]
        },
        "SaveShiftRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"}
            },
            "required": ["name", "startTime", "endTime"]
        },
        "SaveProductRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "partNumber": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["name"]
        },
        "MachineInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "timePerUnit": {"type": "integer"}
            },
            "required": ["name", "timePerUnit"]
        },
        "SimulateScheduleRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer"},
                "startDateTime": {"type": "string", "format": "date-time"},
                "endDateTime": {"type": "string", "format": "date-time"},
                "dailyHours": {"type": "number"},
                "timezone": {"type": "string"},
                "machines": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/MachineInput"}
                }
            },
            "required": ["quantity", "startDateTime", "endDateTime", "dailyHours", "machines"]
        },
        "CreateOrderRequest": {
            "type": "object",
            "properties": {
                "companyId": {"type": "string"},
                "productName": {"type": "string"},
                "partNumber": {"type": "string"},
                "processName": {"type": "string"},
                "machineId": {"type": "string"},
                "startDate": {"type": "string", "format": "date-time"},
                "endDate": {"type": "string", "format": "date-time"},
                "units": {"type": "integer"}
            },
            "required": ["companyId", "productName", "processName", "machineId", "startDate", "endDate", "units"]
        },
        "ResolveConflictRequest": {
            "type": "object",
            "properties": {
                "conflictResolutions": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "orderId": {"type": "string"},
                            "newEndDate": {"type": "string", "format": "date-time"}
                        }
                    }
                },
                "newOrderData": {"$ref": "#/definitions/CreateOrderRequest"}
            },
            "required": ["conflictResolutions", "newOrderData"]
        },
        "UpdateOrderStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            },
            "required": ["status"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
